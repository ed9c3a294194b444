package query

import (
	"time"

	"github.com/zoobzio/clockz"

	"github.com/IvanBrykalov/sharedstate/logging"
)

// Metrics exposes query-client observability hooks.
// NoopMetrics is used when Options.Metrics is nil.
type Metrics interface {
	// Fetch is called every time a fetch function is invoked.
	Fetch()
	// Settle is called when a pending value settles for the current fetch.
	Settle(failed bool, took time.Duration)
	// Discard is called when a pending value settles for a superseded fetch.
	Discard()
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Fetch()                     {}
func (NoopMetrics) Settle(bool, time.Duration) {}
func (NoopMetrics) Discard()                   {}

var _ Metrics = NoopMetrics{}

// Options configures a Client. Zero values are safe:
//   - nil Logger  => logging.NopLogger
//   - nil Metrics => NoopMetrics
//   - nil Clock   => clockz.RealClock
//
// Entries never go stale and are never evicted; Invalidate is the only
// trigger for a refetch.
type Options struct {
	Logger  logging.Logger
	Metrics Metrics
	Clock   clockz.Clock
}
