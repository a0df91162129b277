package agent

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	pushBackoffBase = time.Second
	pushBackoffMax  = 60 * time.Second
)

// pushBackoff paces retry attempts per spec §5's backpressure contract
// ("exponential backoff, start 1 s, double to 60 s max"). It is built on
// rate.Limiter rather than a hand-rolled timer: a Limiter already does the
// "wait until the next slot, then go" bookkeeping correctly under
// concurrent callers, and re-targeting its rate on failure/success is a
// one-line SetLimit instead of reimplementing jitter-free backoff by hand.
type pushBackoff struct {
	limiter *rate.Limiter
	current time.Duration
}

func newPushBackoff() *pushBackoff {
	b := &pushBackoff{current: pushBackoffBase}
	b.limiter = rate.NewLimiter(rate.Every(pushBackoffBase), 1)
	return b
}

// Wait blocks until the next attempt is allowed.
func (b *pushBackoff) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Succeed resets the backoff to its floor.
func (b *pushBackoff) Succeed() {
	b.current = pushBackoffBase
	b.limiter.SetLimit(rate.Every(b.current))
}

// Fail doubles the backoff interval, capped at pushBackoffMax.
func (b *pushBackoff) Fail() {
	b.current *= 2
	if b.current > pushBackoffMax {
		b.current = pushBackoffMax
	}
	b.limiter.SetLimit(rate.Every(b.current))
}

// FailWithHint honors a server-supplied Retry-After hint, per spec §5:
// "agents must honor this by exponential backoff" — the hint sets a floor,
// the usual doubling still applies on top of it on repeated failures.
func (b *pushBackoff) FailWithHint(hint time.Duration) {
	if hint > b.current {
		b.current = hint
	}
	b.Fail()
}

// Pusher batches collected samples and ships them to the server, retrying
// under pushBackoff on failure or backpressure.
type Pusher struct {
	client  *Client
	agentID string
	logger  *slog.Logger
	backoff *pushBackoff
}

// NewPusher creates a Pusher for the given agent identity.
func NewPusher(client *Client, agentID string, logger *slog.Logger) *Pusher {
	return &Pusher{client: client, agentID: agentID, logger: logger, backoff: newPushBackoff()}
}

// Push sends one batch, applying backoff pacing before the attempt and
// adjusting the backoff state from the outcome.
func (p *Pusher) Push(ctx context.Context, samples []SampleWire) error {
	if len(samples) == 0 {
		return nil
	}
	if err := p.backoff.Wait(ctx); err != nil {
		return err
	}

	batch := MetricsBatchWire{
		AgentID: p.agentID,
		BatchTs: time.Now().Unix(),
		Samples: samples,
	}

	result, err := p.client.PushMetrics(ctx, batch)
	if retryErr, ok := err.(*RetryAfter); ok {
		p.backoff.FailWithHint(time.Duration(retryErr.Seconds) * time.Second)
		p.logger.Warn("metrics push throttled", "retry_after_sec", retryErr.Seconds)
		return retryErr
	}
	if err != nil {
		p.backoff.Fail()
		p.logger.Warn("metrics push failed", "error", err)
		return err
	}

	p.backoff.Succeed()
	if result.Rejected > 0 {
		p.logger.Warn("metrics batch had rejections", "accepted", result.Accepted, "rejected", result.Rejected)
	}
	return nil
}
