package state

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Resolve(bool)       {}
func (NoopMetrics) Read(bool)          {}
func (NoopMetrics) Write(WriteOutcome) {}
func (NoopMetrics) Records(int)        {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
