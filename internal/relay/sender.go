package relay

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	kit "teleecho/internal/transport"
	logx "teleecho/pkg/logx"
)

// Stats are best-effort counters of the sender worker.
type Stats struct {
	Sent       uint64
	Edited     uint64
	Failed     uint64
	Suppressed uint64 // empty batches and redundant overrides
}

// sender is the background worker: it drains the queue at a bounded rate
// and decides between sending a new message and editing the last one.
type sender struct {
	out   kit.Sender
	to    kit.ChatTarget
	queue *queue
	sigs  *signals
	pace  *pacer
	log   logx.Logger

	// last is the most recently dispatched message; nil until the first
	// successful send. Only the worker goroutine touches it.
	last *kit.MessageRef

	sent, edited, failed, suppressed atomic.Uint64
}

// run consumes signals until SignalShutdown or ctx is done.
func (w *sender) run(ctx context.Context) error {
	// Resume after a restart: a panic may have eaten the signal for work that
	// is still queued.
	if w.queue.len() > 0 {
		w.drain(ctx)
	}
	for {
		sig, err := w.sigs.recv(ctx)
		if err != nil {
			return err
		}
		switch sig {
		case SignalShutdown:
			return nil
		case SignalNewElement:
			w.drain(ctx)
		}
	}
}

// drain handles one SignalNewElement: wait out the rate limit, then dispatch
// at most one batch. Several signals may be served by one batch.
func (w *sender) drain(ctx context.Context) {
	if err := w.pace.wait(ctx); err != nil {
		return
	}
	batch, ok := w.queue.dequeueBatch()
	if !ok {
		return
	}
	if w.dispatch(ctx, batch) {
		w.pace.mark(time.Now())
	}
}

// dispatch reports whether a network call was attempted.
func (w *sender) dispatch(ctx context.Context, batch Segment) bool {
	if batch.Text == "" {
		w.suppressed.Add(1)
		return false
	}
	switch batch.Kind {
	case KindNewline:
		w.send(ctx, batch.Text)
		return true
	case KindCarriageReturn:
		return w.override(ctx, batch.Text)
	default:
		w.log.Warn("unknown segment kind dropped", logx.String("kind", batch.Kind.String()))
		return false
	}
}

func (w *sender) send(ctx context.Context, text string) {
	ref, err := w.out.SendText(ctx, w.to, text)
	if err != nil {
		w.failed.Add(1)
		w.log.Error("error while sending", logx.Err(err), logx.Int("runes", len([]rune(text))))
		return
	}
	w.sent.Add(1)
	w.last = &ref
	w.log.Debug("message sent", logx.Int("message_id", ref.MessageID))
}

// override replaces the last line of the previous message with text.
func (w *sender) override(ctx context.Context, text string) bool {
	if w.last == nil {
		w.suppressed.Add(1)
		w.log.Warn("no previous message to override")
		return false
	}
	// Covers text == last.Text as well: Telegram rejects no-op edits.
	edited := replaceLastLine(w.last.Text, text)
	if edited == w.last.Text {
		w.suppressed.Add(1)
		return false
	}

	ref, err := w.out.EditText(ctx, *w.last, edited)
	if err != nil {
		w.failed.Add(1)
		w.log.Error("error while overriding", logx.Err(err), logx.Int("message_id", w.last.MessageID))
		return true
	}
	w.edited.Add(1)
	w.last = &ref
	return true
}

// replaceLastLine swaps the final '\n'-separated line of prev for line.
func replaceLastLine(prev, line string) string {
	if i := strings.LastIndexByte(prev, '\n'); i >= 0 {
		return prev[:i+1] + line
	}
	return line
}

func (w *sender) stats() Stats {
	return Stats{
		Sent:       w.sent.Load(),
		Edited:     w.edited.Load(),
		Failed:     w.failed.Load(),
		Suppressed: w.suppressed.Load(),
	}
}
