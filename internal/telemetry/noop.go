package telemetry

import "github.com/JupiterMetaLabs/chronomerkle/merkle"

// Noop is telemetry's own no-op sink, distinct from merkle.NoopLogger
// only in that it lives alongside ZapLogger so callers choosing a
// logger at startup (e.g. a "--log=none" CLI flag) can pick between
// the two telemetry.* constructors without reaching back into merkle.
type Noop struct{}

func (Noop) Emit(merkle.Event) {}

var _ merkle.Logger = Noop{}
