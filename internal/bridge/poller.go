package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusFetcher reads the remote device state.
type StatusFetcher interface {
	Status(ctx context.Context) (Status, error)
}

// Poller republishes remote state changes to the local command topic. The
// first observation after startup only primes it.
type Poller struct {
	fetch    StatusFetcher
	pub      Publisher
	topic    string
	interval time.Duration

	primed bool
	last   string
}

func NewPoller(fetch StatusFetcher, pub Publisher, topic string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{fetch: fetch, pub: pub, topic: topic, interval: interval}
}

func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Str("topic", p.topic).Msg("status poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("status poll failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one fetch and reports whether a command was published.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	st, err := p.fetch.Status(ctx)
	if err != nil {
		return false, err
	}

	if !p.primed {
		p.primed, p.last = true, st.LastUpdated
		log.Debug().Str("state", st.State).Str("last_updated", st.LastUpdated).Msg("status poller primed")
		return false, nil
	}
	if st.LastUpdated == p.last {
		return false, nil
	}

	if err := p.pub.Publish(p.topic, []byte(st.State)); err != nil {
		return false, err
	}
	p.last = st.LastUpdated
	log.Info().Str("state", st.State).Str("topic", p.topic).Msg("remote command relayed")
	return true, nil
}
