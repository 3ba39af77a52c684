package relay

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSendInterval is the minimum spacing between two network dispatches.
const DefaultSendInterval = time.Second

// pacer spaces dispatches at least one interval apart, measured from the end
// of the previous dispatch. It is a burst-1 token bucket whose token is only
// taken once a dispatch has completed, so network latency counts toward the
// next window.
type pacer struct {
	lim *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	p := &pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	p.setInterval(interval)
	return p
}

// setInterval is safe to call concurrently with wait/mark.
func (p *pacer) setInterval(d time.Duration) {
	if d <= 0 {
		p.lim.SetLimit(rate.Inf)
		return
	}
	p.lim.SetLimit(rate.Every(d))
}

func (p *pacer) interval() time.Duration {
	lim := p.lim.Limit()
	if lim == rate.Inf || lim <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(lim))
}

// delay reports how long a dispatch starting at now has to wait.
func (p *pacer) delay(now time.Time) time.Duration {
	lim := p.lim.Limit()
	if lim == rate.Inf {
		return 0
	}
	tokens := p.lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration(math.Ceil((1 - tokens) / float64(lim) * float64(time.Second)))
}

func (p *pacer) wait(ctx context.Context) error {
	d := p.delay(time.Now())
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mark records a completed dispatch attempt. The token is taken even if the
// bucket is a hair short of full, so the next window always starts at now.
func (p *pacer) mark(now time.Time) {
	_ = p.lim.ReserveN(now, 1)
}
