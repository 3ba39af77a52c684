package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	rtsup "teleecho/internal/runtime/supervisor"
	kit "teleecho/internal/transport"
	logx "teleecho/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// APIURL overrides the Bot API base URL (self-hosted bot API server, tests).
	APIURL string
	// Offline skips the getMe round trip in New.
	Offline bool
}

// Adapter implements kit.Client on top of telebot.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	// pollMu serializes Poll; telebot keeps a single handler table.
	pollMu sync.Mutex
}

var _ kit.Client = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "telegram.adapter"))

	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: cfg.Offline,
		// Handlers run on the poll loop so Poll callbacks never overlap.
		Synchronous: true,
		OnError: func(err error, _ tele.Context) {
			log.Warn("telegram error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	if utf8.RuneCountInString(text) > kit.MaxTextRunes {
		return kit.MessageRef{}, kit.ErrTextTooLong
	}

	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              to.ThreadID,
	})
	if err != nil {
		return kit.MessageRef{}, err
	}
	return refFromMsg(msg, to, text), nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string) (kit.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	if utf8.RuneCountInString(text) > kit.MaxTextRunes {
		return kit.MessageRef{}, kit.ErrTextTooLong
	}

	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	msg, err := a.bot.Edit(m, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return kit.MessageRef{}, err
	}
	out := refFromMsg(msg, ref.Target(), text)
	if out.MessageID == 0 {
		out.MessageID = ref.MessageID
	}
	return out, nil
}

func (a *Adapter) Me(ctx context.Context) (kit.Identity, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.Identity{}, err
	}
	me := a.bot.Me
	if me == nil || me.ID == 0 {
		return kit.Identity{}, errors.New("telegram: bot identity unavailable")
	}
	return kit.Identity{ID: me.ID, Username: me.Username, FirstName: me.FirstName}, nil
}

// Poll runs telebot's long poll loop and hands every text message to fn.
// It returns nil once fn asked to stop, or ctx.Err() if ctx ended first.
func (a *Adapter) Poll(ctx context.Context, fn func(kit.Message) kit.PollAction) error {
	if fn == nil {
		return errors.New("telegram: nil poll callback")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a.pollMu.Lock()
	defer a.pollMu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		select {
		case <-stop:
			return nil
		default:
		}
		if fn(msgFromTele(m)) == kit.PollStop {
			once.Do(func() { close(stop) })
		}
		return nil
	})
	defer a.bot.Handle(tele.OnText, func(tele.Context) error { return nil })

	sup := rtsup.New(ctx, rtsup.WithLogger(a.log))
	sup.Go0("telebot.poll", func(context.Context) {
		a.log.Debug("polling started")
		a.bot.Start()
		a.log.Debug("polling stopped")
	})

	var err error
	select {
	case <-stop:
	case <-ctx.Done():
		err = ctx.Err()
	}

	a.bot.Stop()
	sup.Cancel()
	if werr := sup.Wait(context.Background()); werr != nil && err == nil {
		err = werr
	}
	return err
}

func refFromMsg(msg *tele.Message, to kit.ChatTarget, sent string) kit.MessageRef {
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, Text: sent}
	if msg == nil {
		return ref
	}
	ref.MessageID = msg.ID
	if msg.Chat != nil && msg.Chat.ID != 0 {
		ref.ChatID = msg.Chat.ID
	}
	if msg.Text != "" {
		ref.Text = msg.Text
	}
	return ref
}

func msgFromTele(m *tele.Message) kit.Message {
	out := kit.Message{ID: m.ID, Text: m.Text}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
	}
	if m.Sender != nil {
		out.FromID = m.Sender.ID
		out.FromUsername = m.Sender.Username
		out.FromName = m.Sender.FirstName
	}
	return out
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
