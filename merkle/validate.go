package merkle

import "time"

// Data size bounds (§4.9): a leaf's payload must be non-empty and no
// larger than 1 MiB.
const (
	minLeafSize = 1
	maxLeafSize = 1 << 20

	// futureWindow and pastWindow bound the tag validation window around
	// Config.Clock() — one year ahead, a century behind (§4.9).
	futureWindow = 365 * 24 * time.Hour
	pastWindow   = 100 * 365 * 24 * time.Hour
)

// validateInsert runs the C9 checks that must pass before a leaf is
// ever appended: size bounds and the tag window. Duplicate tags are
// permitted and are not this function's concern (the caller logs a
// warning, per I3); this function only rejects.
func validateInsert(data []byte, tag uint64, cfg Config) error {
	if len(data) < minLeafSize {
		return errInvalidConfiguration("data", "data must not be empty")
	}
	if len(data) > maxLeafSize {
		return errInvalidConfiguration("data", "data exceeds the 1 MiB leaf size limit")
	}

	now := cfg.clock()
	if now.IsZero() {
		// No wall clock injected: the lower bound saturates at 0 and
		// there is no usable upper bound to check against.
		return nil
	}

	future := uint64(now.Add(futureWindow).Unix())
	if tag > future {
		return errInvalidTag(tag, "more than one year ahead of the configured clock")
	}

	pastCutoff := now.Add(-pastWindow)
	var past uint64
	if pastCutoff.Unix() > 0 {
		past = uint64(pastCutoff.Unix())
	}
	if tag < past {
		return errInvalidTag(tag, "more than one hundred years behind the configured clock")
	}
	return nil
}

// runValidators evaluates every programmable validator against a leaf;
// all must pass (§9). An empty validator list always passes.
func runValidators(validators []Validator, leaf Leaf) bool {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if !v(leaf) {
			return false
		}
	}
	return true
}
