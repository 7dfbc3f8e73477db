package checkout

type Step string

const (
	StepEmptyCart Step = "EMPTY_CART"
	StepShipping  Step = "SHIPPING"
	StepPayment   Step = "PAYMENT"
	StepReview    Step = "REVIEW"
	StepConfirmed Step = "CONFIRMED"
)

var transitions = map[Step][]Step{
	StepShipping: {StepPayment},
	StepPayment:  {StepReview, StepShipping},
	StepReview:   {StepConfirmed, StepPayment},
}

func (s Step) IsTerminal() bool {
	return s == StepConfirmed
}

func (s Step) Valid() bool {
	switch s {
	case StepShipping, StepPayment, StepReview, StepConfirmed:
		return true
	}
	return false
}

// String representation (for logging)
func (s Step) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine allows from -> to.
// EMPTY_CART is a guard, not a stored step, so it never appears here.
func CanTransitionTo(from, to Step) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
