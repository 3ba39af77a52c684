package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	rtsup "teleecho/internal/runtime/supervisor"
	kit "teleecho/internal/transport"
	logx "teleecho/pkg/logx"
)

var ErrClosed = errors.New("relay: processor closed")

type Option func(*options)

type options struct {
	log      logx.Logger
	interval time.Duration
	collapse bool
}

func WithLogger(log logx.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSendInterval sets the minimum spacing between dispatches.
// Zero or negative disables pacing.
func WithSendInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithCollapseOverwrites makes a queued carriage-return segment replace the
// text of the segment queued before it instead of waiting behind it.
func WithCollapseOverwrites(enabled bool) Option {
	return func(o *options) { o.collapse = enabled }
}

// Processor owns the producer side of the relay (segmenter) and the sender
// worker. Feed/ReadFrom and Close may be called from different goroutines.
type Processor struct {
	log logx.Logger

	mu     sync.Mutex
	seg    *Segmenter
	closed bool

	queue  *queue
	sigs   *signals
	worker *sender
	sup    *rtsup.Supervisor
}

// Start launches the sender worker for chat to and returns the processor
// feeding it. Callers must Close it on every exit path.
func Start(ctx context.Context, out kit.Sender, to kit.ChatTarget, opts ...Option) *Processor {
	o := options{interval: DefaultSendInterval}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	log := o.log.With(logx.String("comp", "relay"))

	p := &Processor{
		log:   log,
		queue: &queue{collapse: o.collapse},
		sigs:  newSignals(),
	}
	p.seg = NewSegmenter(p.enqueue)
	p.worker = &sender{
		out:   out,
		to:    to,
		queue: p.queue,
		sigs:  p.sigs,
		pace:  newPacer(o.interval),
		log:   o.log.With(logx.String("comp", "relay.sender")),
	}

	p.sup = rtsup.New(ctx, rtsup.WithLogger(log))
	p.sup.GoRestart("relay.sender", p.worker.run,
		rtsup.WithRestartBackoff(100*time.Millisecond, 5*time.Second),
	)
	log.Debug("relay started", logx.Int64("chat_id", to.ChatID), logx.Duration("interval", o.interval))
	return p
}

// enqueue is the segmenter sink: one segment, one signal.
func (p *Processor) enqueue(seg Segment) {
	p.queue.push(seg)
	p.sigs.send(SignalNewElement)
}

// Feed segments text rune by rune.
func (p *Processor) Feed(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	for _, r := range text {
		p.seg.Feed(r)
	}
	return nil
}

// ReadFrom feeds r until EOF. Bytes that are not valid UTF-8 are logged and
// skipped.
func (p *Processor) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	var n int64
	var skipped int
	for {
		c, size, err := br.ReadRune()
		if err != nil {
			if skipped > 0 {
				p.log.Debug("invalid utf-8 input skipped", logx.Int("bytes", skipped))
			}
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		n += int64(size)
		if c == utf8.RuneError && size == 1 {
			skipped++
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return n, ErrClosed
		}
		p.seg.Feed(c)
		p.mu.Unlock()
	}
}

// SetSendInterval changes the pacing interval of a running processor.
func (p *Processor) SetSendInterval(d time.Duration) {
	p.worker.pace.setInterval(d)
}

// SendInterval returns the current pacing interval (0 = unpaced).
func (p *Processor) SendInterval() time.Duration {
	return p.worker.pace.interval()
}

func (p *Processor) Stats() Stats { return p.worker.stats() }

// Close flushes a non-empty input tail, asks the worker to stop after the
// signals already queued, and waits for it. Calling Close again is a no-op.
func (p *Processor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.seg.Pending() > 0 {
		p.seg.Flush()
	}
	p.mu.Unlock()

	p.sigs.send(SignalShutdown)
	err := p.sup.Wait(context.Background())
	p.sup.Cancel()

	st := p.worker.stats()
	p.log.Debug("relay stopped",
		logx.Any("sent", st.Sent),
		logx.Any("edited", st.Edited),
		logx.Any("failed", st.Failed),
		logx.Int("discarded", p.queue.len()),
	)
	return err
}
