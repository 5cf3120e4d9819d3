package endpoint

import (
	"context"
	"errors"

	"github.com/pithecene-io/haul/log"
	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/transport"
	"github.com/pithecene-io/haul/types"
)

// Endpoint is one side of a round trip.
type Endpoint interface {
	// Role reports which side this endpoint plays.
	Role() types.Role
	// Run processes inbound messages until ctx is done or the channel closes.
	Run(ctx context.Context) error
}

// ErrStopped is returned to transfers still waiting when Run exits.
var ErrStopped = errors.New("endpoint stopped")

// base holds what both roles share.
type base struct {
	ch        transport.Channel
	cfg       Config
	logger    *log.Logger
	collector *metrics.Collector
	sender    *sender
}

func newBase(ch transport.Channel, cfg Config, logger *log.Logger, collector *metrics.Collector) (*base, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	if err := cfg.Validate(ch.Caps()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	b := &base{
		ch:        ch,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
	}
	b.sender = &sender{ch: ch, cfg: &b.cfg, logger: logger, collector: collector}
	return b, nil
}
