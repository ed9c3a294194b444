package query

import "github.com/zoobzio/capitan"

var (
	// Settled is emitted when a pending value settles for the current fetch.
	Settled = capitan.NewSignal(
		"sharedstate.query.settled",
		"Pending value settled",
	)

	// SettleDiscarded is emitted when a superseded fetch settles.
	SettleDiscarded = capitan.NewSignal(
		"sharedstate.query.settle.discarded",
		"Superseded pending value settled and was discarded",
	)
)

var (
	// KeyKey is the canonical key of the entry.
	KeyKey = capitan.NewStringKey("key")

	// KeyError is the settlement error message, if any.
	KeyError = capitan.NewStringKey("error")

	// KeyTook is how long the pending value took to settle.
	KeyTook = capitan.NewDurationKey("took")
)
