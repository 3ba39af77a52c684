package transport

import (
	"context"
	"errors"
)

// MaxTextRunes is Telegram's message length limit in Unicode code points.
const MaxTextRunes = 4096

// ErrTextTooLong is returned before any network call when a text exceeds MaxTextRunes.
var ErrTextTooLong = errors.New("transport: text exceeds message length limit")

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

// MessageRef identifies a sent message together with the text the platform
// reported for it.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
	Text      string
}

func (r MessageRef) Target() ChatTarget {
	return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID}
}

// Identity is the bot's own account.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Message is an incoming text message.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
}

// PollAction tells Poll whether to keep listening.
type PollAction int

const (
	PollContinue PollAction = iota
	PollStop
)

// Sender is the outbound half used by the relay.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) (MessageRef, error)
}

// Client is the full platform surface: sending plus identity and long polling.
type Client interface {
	Sender

	Me(ctx context.Context) (Identity, error)

	// Poll delivers incoming text messages to fn until fn returns PollStop,
	// ctx is done, or polling fails.
	Poll(ctx context.Context, fn func(Message) PollAction) error
}
