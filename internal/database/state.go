package database

// State tracks where a Database is in its lifecycle. The connect-time
// reconciliation passes through exactly one of EmptyInitialized or
// TrustedExisting before settling on Ready; resets move Ready → Resetting
// → Ready.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateEmptyInitialized
	StateTrustedExisting
	StateReady
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEmptyInitialized:
		return "empty_initialized"
	case StateTrustedExisting:
		return "trusted_existing"
	case StateReady:
		return "ready"
	case StateResetting:
		return "resetting"
	default:
		return "disconnected"
	}
}

// Mode selects how connect-time reconciliation treats an already-populated
// store. Trusting skips any comparison; verifying runs a drift comparison
// of every declared table against the live catalog and fails with a drift
// report when they diverge.
type Mode int

const (
	ModeTrust Mode = iota
	ModeVerify
)

func (m Mode) String() string {
	if m == ModeVerify {
		return "verify"
	}
	return "trust"
}
