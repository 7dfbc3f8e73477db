package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	allowed := [][2]Step{
		{StepShipping, StepPayment},
		{StepPayment, StepReview},
		{StepPayment, StepShipping},
		{StepReview, StepConfirmed},
		{StepReview, StepPayment},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransitionTo(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]Step{
		{StepShipping, StepReview},
		{StepShipping, StepConfirmed},
		{StepConfirmed, StepShipping},
		{StepConfirmed, StepReview},
		{StepEmptyCart, StepPayment},
		{StepReview, StepShipping},
	}
	for _, tr := range denied {
		assert.False(t, CanTransitionTo(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestStep_IsTerminal(t *testing.T) {
	assert.True(t, StepConfirmed.IsTerminal())
	for _, s := range []Step{StepEmptyCart, StepShipping, StepPayment, StepReview} {
		assert.False(t, s.IsTerminal())
	}
}
