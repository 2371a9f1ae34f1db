package flashfs

import (
	"testing"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSelectActive(t *testing.T) {
	erased := BlockStatus{Class: BlockErased}
	invalid := BlockStatus{Class: BlockInvalid}
	valid := func(gen uint64, clean bool) BlockStatus {
		return BlockStatus{Class: BlockValid, Generation: gen, Clean: clean}
	}

	tests := []struct {
		name       string
		a, b       BlockStatus
		action     Action
		active     uint32
		eraseOther bool
	}{
		{"fresh device", erased, erased, ActionFormat, 0, false},
		{"torn format", invalid, erased, ActionFormat, 0, false},
		{"both invalid", invalid, invalid, ActionFormat, 0, true},
		{"only first valid", valid(3, true), erased, ActionAdopt, 0, false},
		{"only second valid", erased, valid(3, true), ActionAdopt, 1, false},
		{"valid beside torn scratch", valid(3, true), invalid, ActionAdopt, 0, true},
		{"torn scratch beside valid", invalid, valid(5, false), ActionAdopt, 1, true},
		{"newer second", valid(3, true), valid(4, true), ActionAdopt, 1, true},
		{"newer first", valid(9, false), valid(4, true), ActionAdopt, 0, true},
		{"equal, first clean", valid(4, true), valid(4, false), ActionAdopt, 0, true},
		{"equal, second clean", valid(4, false), valid(4, true), ActionAdopt, 1, true},
		{"equal, both clean", valid(4, true), valid(4, true), ActionFormat, 0, true},
		{"equal, neither clean", valid(4, false), valid(4, false), ActionFormat, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := SelectActive(tt.a, tt.b)
			assert.Equal(t, tt.action, plan.Action)
			assert.Equal(t, tt.active, plan.Active)
			assert.Equal(t, tt.eraseOther, plan.EraseOther)
			assert.NotEmpty(t, plan.Reason)

			// the plan must not depend on anything but its inputs
			assert.Equal(t, plan, SelectActive(tt.a, tt.b))
		})
	}
}

func TestSelectActive_Symmetric(t *testing.T) {
	classes := []BlockStatus{
		{Class: BlockErased},
		{Class: BlockInvalid},
		{Class: BlockValid, Generation: 1, Clean: true},
		{Class: BlockValid, Generation: 2, Clean: false},
		{Class: BlockValid, Generation: 2, Clean: true},
	}

	for _, a := range classes {
		for _, b := range classes {
			p, q := SelectActive(a, b), SelectActive(b, a)
			assert.Equal(t, p.Action, q.Action, "%+v / %+v", a, b)
			if p.Action == ActionAdopt {
				assert.Equal(t, p.Active, 1-q.Active, "%+v / %+v", a, b)
			}
		}
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateUninitialized, StatePrepared, true},
		{StatePrepared, StateCompacting, true},
		{StateCompacting, StateSwapped, true},
		{StateCompacting, StatePrepared, true},
		{StateSwapped, StatePrepared, true},
		{StateUninitialized, StateCompacting, false},
		{StatePrepared, StateSwapped, false},
		{StateSwapped, StateCompacting, false},
		{StateSwapped, StateUninitialized, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))

			fs := &FS{state: tt.from}
			err := fs.transition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, fs.state)
			} else {
				assert.ErrorIs(t, err, types.ErrProgrammerError)
				assert.Equal(t, tt.from, fs.state)
			}
		})
	}

	assert.Equal(t, "state(42)", State(42).String())
	assert.Equal(t, "invalid", BlockInvalid.String())
}
