package checkout

import "go.uber.org/zap"

// State is a step of one settlement attempt.
type State string

const (
	StateIdle              State = "idle"
	StateCartLocked        State = "cart_locked"
	StateReserved          State = "reserved"
	StateAwaitingPayment   State = "awaiting_payment"
	StateVerified          State = "verified"
	StateMaterialized      State = "materialized"
	StateCleared           State = "cleared"
	StateReservationFailed State = "reservation_failed"
	StatePaymentInvalid    State = "payment_invalid"
	StatePersistFailed     State = "persist_failed"
)

var stateTransitions = map[State][]State{
	StateIdle:            {StateCartLocked},
	StateCartLocked:      {StateReserved, StateReservationFailed},
	StateReserved:        {StateAwaitingPayment, StateMaterialized, StatePersistFailed},
	StateAwaitingPayment: {StateVerified, StatePaymentInvalid},
	StateVerified:        {StateMaterialized, StatePersistFailed},
	StateMaterialized:    {StateCleared},
}

// CanAdvance reports whether next directly follows s.
func (s State) CanAdvance(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return len(stateTransitions[s]) == 0
}

// attempt tracks one run through the settlement protocol.
type attempt struct {
	state  State
	path   string
	logger *zap.Logger
}

func newAttempt(path string, logger *zap.Logger) *attempt {
	return &attempt{state: StateIdle, path: path, logger: logger}
}

func (a *attempt) advance(next State) {
	if !a.state.CanAdvance(next) {
		a.logger.Error("illegal settlement transition", zap.String("from", string(a.state)), zap.String("to", string(next)))
	}
	a.logger.Debug("settlement state", zap.String("from", string(a.state)), zap.String("to", string(next)))
	a.state = next
}
