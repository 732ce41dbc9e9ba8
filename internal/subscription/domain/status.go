package domain

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusTrial          Status = "trial"
	StatusActive         Status = "active"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
	StatusPendingPayment Status = "pending_payment"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusExpired, StatusCancelled, StatusPendingPayment:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// GrantsAccess reports whether a subscription in this state may govern entitlements.
func (s Status) GrantsAccess() bool {
	return s == StatusTrial || s == StatusActive
}

// BlocksNewTrial reports whether a current subscription in this state
// prevents the lab from starting a trial.
func (s Status) BlocksNewTrial() bool {
	return s == StatusTrial || s == StatusActive || s == StatusPendingPayment
}

type transition struct {
	from Status
	to   Status
}

var validTransitions = map[transition]bool{
	{StatusPendingPayment, StatusActive}:    true, // payment confirmed
	{StatusPendingPayment, StatusCancelled}: true, // purchase abandoned
	{StatusTrial, StatusExpired}:            true, // sweep
	{StatusTrial, StatusCancelled}:          true, // cancel, or superseded by a paid plan
	{StatusActive, StatusExpired}:           true, // sweep
	{StatusActive, StatusCancelled}:         true, // cancel, or superseded by a paid plan
}

// CanTransition reports whether a subscription may move from one status to another.
func CanTransition(from, to Status) bool {
	return validTransitions[transition{from, to}]
}
