package state

import (
	"context"

	"github.com/zoobzio/clockz"

	"github.com/IvanBrykalov/sharedstate/logging"
	"github.com/IvanBrykalov/sharedstate/query"
)

// Subsystem is the asynchronous query cache the store layers on top of.
// *query.Client implements it.
type Subsystem interface {
	// Register records fetch for k; the first registration runs it.
	Register(ctx context.Context, k Key, fetch query.FetchFunc) query.Entry
	// Invalidate re-runs the registered fetch for k.
	Invalidate(ctx context.Context, k Key)
	// ReadCached returns the last settled value for k.
	ReadCached(k Key) (any, bool)
	// Subscribe returns a listener woken when a pending value for k settles.
	Subscribe(k Key) *query.Listener
}

var _ Subsystem = (*query.Client)(nil)

// WriteOutcome says how a write became visible.
type WriteOutcome int

const (
	// WriteNoop means the new value was identical to the old one; nothing happened.
	WriteNoop WriteOutcome = iota
	// WriteBypass means a concrete value; consumers were woken synchronously.
	WriteBypass
	// WriteDeferred means a pending value; consumers are woken when it settles.
	WriteDeferred
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteBypass:
		return "bypass"
	case WriteDeferred:
		return "deferred"
	default:
		return "noop"
	}
}

// Metrics exposes store-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Resolve is called when a record is created; failed if its default errored.
	Resolve(failed bool)
	// Read is called on every read; pending if the value is a pending one.
	Read(pending bool)
	// Write is called on every successful write.
	Write(outcome WriteOutcome)
	// Records reports the number of records after a creation.
	Records(n int)
}

// Options configures the store. Zero values are safe;
// sane defaults are applied in New():
//   - Shards <= 0     => auto (rounded up to power of two)
//   - nil Query       => a private *query.Client, closed with the store
//   - nil Logger      => logging.NopLogger
//   - nil Metrics     => NoopMetrics
//   - nil Clock       => clockz.RealClock
type Options struct {
	// Shards defines the number of record-map shards.
	Shards int

	// Query is the query cache used for pending values and refetches.
	Query Subsystem
	// QueryMetrics is passed to the private query client when Query is nil.
	QueryMetrics query.Metrics

	// Observability
	Logger  logging.Logger
	Metrics Metrics

	// Clock stamps record creation; it is shared with the private query client.
	Clock clockz.Clock
}
