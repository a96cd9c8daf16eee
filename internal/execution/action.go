// Package execution converts per-venue sides into position transitions, tiered fees and fee-adjusted returns.
package execution

// Action classifies how the primary position changed between consecutive periods.
type Action string

const (
	Keep    Action = "keep"
	Close   Action = "close"
	Open    Action = "open"
	Reverse Action = "reverse"
)

// Classify maps (previous, current) side to an action. Sides must be in {-1, 0, 1}.
func Classify(prev, cur int) Action {
	switch {
	case prev == cur:
		return Keep
	case cur == 0:
		return Close
	case prev == 0:
		return Open
	default:
		// prev*cur == -1 is the only remaining pair
		return Reverse
	}
}

// FeeMultiplier is how many per-side fees the action pays.
func (a Action) FeeMultiplier() float64 {
	switch a {
	case Open, Close:
		return 1
	case Reverse:
		return 2
	default:
		return 0
	}
}

func (a Action) String() string { return string(a) }
