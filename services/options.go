package services

import (
	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/metrics"
)

// Options carries the ambient collaborators shared by every service.
// The zero value is usable: wall clock, no logging, no metrics.
type Options struct {
	Clock   core.Clock
	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
}

func (o Options) clock() core.Clock {
	if o.Clock == nil {
		return core.SystemClock
	}
	return o.Clock
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}
