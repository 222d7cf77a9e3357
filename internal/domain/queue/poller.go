package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

const (
	minPollInterval = 1 * time.Second
	maxPollInterval = 5 * time.Second
)

// StatusFunc reads the current status, typically a closure over
// Service.LatestStatusFor. ErrNotFound means "nothing visible yet" and keeps
// the poll alive.
type StatusFunc func(ctx context.Context) (*WorkItem, error)

// Poller is the requester-side polling loop: re-read the store on a fixed
// interval until the item leaves pending, backing off on store errors. Every
// read hits the store; nothing is cached, so any number of concurrent
// pollers on the same identity converge to the same observed state.
type Poller struct {
	interval   time.Duration
	maxBackoff time.Duration
	log        zerolog.Logger
}

// NewPoller clamps interval into the 1-5s band the clients use.
func NewPoller(interval time.Duration, log zerolog.Logger) *Poller {
	if interval < minPollInterval {
		interval = minPollInterval
	}
	if interval > maxPollInterval {
		interval = maxPollInterval
	}
	return &Poller{
		interval:   interval,
		maxBackoff: 30 * time.Second,
		log:        log,
	}
}

// Wait polls fetch until the observed item is no longer pending, then
// returns it. Store errors are retried with jittered exponential backoff;
// the only terminal failure is context cancellation.
func (p *Poller) Wait(ctx context.Context, fetch StatusFunc) (*WorkItem, error) {
	backoff := p.interval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		item, err := fetch(ctx)
		switch {
		case err == nil && item.Status != StatusPending:
			return item, nil
		case err == nil || errors.Is(err, ErrNotFound):
			// Still pending, or not admitted yet. Keep the cadence.
			backoff = p.interval
			timer.Reset(p.interval)
		default:
			p.log.Warn().Err(err).Dur("backoff", backoff).Msg("status poll failed, backing off")
			timer.Reset(jitter(backoff))
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

// jitter spreads retries so stalled pollers do not thunder back in step.
func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
