package flashfs

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/types"
)

// State is the lifecycle state of a filesystem context
type State int

const (
	// StateUninitialized: no active block has been selected.
	StateUninitialized State = iota
	// StatePrepared: the active block is authoritative and the cache is valid.
	StatePrepared
	// StateCompacting: the scratch block is being assembled.
	StateCompacting
	// StateSwapped: the scratch block is committed and active, the old block
	// still needs an erase.
	StateSwapped
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StatePrepared:      "prepared",
	StateCompacting:    "compacting",
	StateSwapped:       "swapped",
}

// String returns the state name
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateUninitialized: {StatePrepared, StateUninitialized},
	StatePrepared:      {StateCompacting, StateUninitialized},
	StateCompacting:    {StateSwapped, StatePrepared, StateUninitialized},
	StateSwapped:       {StatePrepared},
}

// CanTransition reports whether moving from s to next is allowed
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (fs *FS) transition(next State) error {
	if !fs.state.CanTransition(next) {
		return fmt.Errorf("%w: illegal state transition %s -> %s", types.ErrProgrammerError, fs.state, next)
	}
	fs.state = next
	return nil
}

// BlockClass is the classification of a block found at prepare time
type BlockClass int

const (
	// BlockErased holds only the erased value.
	BlockErased BlockClass = iota
	// BlockValid has an intact header matching the geometry and a commit marker.
	BlockValid
	// BlockInvalid is anything else: torn formats, foreign data, stale scratch.
	BlockInvalid
)

// String returns the class name
func (c BlockClass) String() string {
	switch c {
	case BlockErased:
		return "erased"
	case BlockValid:
		return "valid"
	default:
		return "invalid"
	}
}

// BlockStatus is the input of the recovery planner for one block
type BlockStatus struct {
	Class      BlockClass
	Generation uint64

	// Clean is true when the directory of a valid block has no corrupt slot.
	Clean bool
}

// Action is the recovery decision taken by Prepare
type Action int

const (
	// ActionAdopt keeps an existing valid block as the active one.
	ActionAdopt Action = iota
	// ActionFormat discards both blocks and formats a fresh store.
	ActionFormat
)

// Plan is the result of SelectActive
type Plan struct {
	Action Action

	// Active is the block to adopt, or the block to format.
	Active uint32

	// EraseOther requests an erase of the block that is not active.
	EraseOther bool

	Reason string
}

// SelectActive decides which of the two blocks of a context is authoritative.
// It is pure so the recovery rules can be checked exhaustively.
func SelectActive(a, b BlockStatus) Plan {
	st := [2]BlockStatus{a, b}

	adopt := func(i uint32, reason string) Plan {
		other := st[1-i]
		return Plan{Action: ActionAdopt, Active: i, EraseOther: other.Class != BlockErased, Reason: reason}
	}

	switch {
	case a.Class == BlockValid && b.Class != BlockValid:
		return adopt(0, "single valid block")
	case b.Class == BlockValid && a.Class != BlockValid:
		return adopt(1, "single valid block")
	case a.Class == BlockValid && b.Class == BlockValid:
		switch {
		case a.Generation > b.Generation:
			return adopt(0, "newer generation")
		case b.Generation > a.Generation:
			return adopt(1, "newer generation")
		case a.Clean && !b.Clean:
			return adopt(0, "equal generation, clean directory")
		case b.Clean && !a.Clean:
			return adopt(1, "equal generation, clean directory")
		}
		return Plan{Action: ActionFormat, Active: 0, EraseOther: true, Reason: "ambiguous equal generations"}
	}

	return Plan{Action: ActionFormat, Active: 0, EraseOther: b.Class != BlockErased, Reason: "no valid block"}
}
