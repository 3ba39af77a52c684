// Package pairing binds a bot token to the chat that proves it can talk to
// the bot: the user sends a one-time number printed on the terminal.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	kit "teleecho/internal/transport"
	logx "teleecho/pkg/logx"
)

var (
	// ErrNoIdentity is returned when the bot's own account cannot be fetched.
	ErrNoIdentity = errors.New("pairing: cannot fetch bot identity")
	// ErrNoRecipient is returned when polling ended without a matching message.
	ErrNoRecipient = errors.New("pairing: no chat sent the pairing number")
)

// MaxCode is the largest pairing number that can be generated.
const MaxCode = 99999

const confirmText = "correct number!"

// Result is a completed pairing.
type Result struct {
	Token  string
	ChatID int64
	// Who sent the number; informational only.
	FromName string
}

type Option func(*options)

type options struct {
	log  logx.Logger
	out  io.Writer
	code func() int
}

func WithLogger(log logx.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithOutput sets where the pairing prompt is printed (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithCode replaces the random number generator.
func WithCode(fn func() int) Option {
	return func(o *options) { o.code = fn }
}

func randomCode() int { return rand.IntN(MaxCode + 1) }

// Run performs the handshake for token over client. It blocks until a chat
// sends the printed number, polling fails, or ctx is done.
func Run(ctx context.Context, client kit.Client, token string, opts ...Option) (Result, error) {
	o := options{out: os.Stdout, code: randomCode}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	log := o.log.With(logx.String("comp", "pairing"))

	me, err := client.Me(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNoIdentity, err)
	}

	want := strconv.Itoa(o.code())
	if _, err := fmt.Fprintf(o.out, "send the following number to the %s bot:\t%s\n", me.Username, want); err != nil {
		return Result{}, fmt.Errorf("pairing: print prompt: %w", err)
	}

	var (
		found bool
		res   = Result{Token: token}
	)
	err = client.Poll(ctx, func(m kit.Message) kit.PollAction {
		if m.Text != want {
			log.Info("received wrong number", logx.String("from", m.FromName), logx.Int64("chat_id", m.ChatID))
			return kit.PollContinue
		}
		if _, err := client.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, confirmText); err != nil {
			log.Warn("pairing confirmation not delivered", logx.Err(err))
		}
		found = true
		res.ChatID = m.ChatID
		res.FromName = m.FromName
		return kit.PollStop
	})
	if found {
		log.Info("paired", logx.Int64("chat_id", res.ChatID), logx.String("bot", me.Username))
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("pairing: poll: %w", err)
	}
	return Result{}, ErrNoRecipient
}
