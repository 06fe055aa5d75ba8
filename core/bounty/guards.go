package bounty

// Operation names a lifecycle entry point.
type Operation string

const (
	OpInitialize Operation = "initialize"
	OpCreate     Operation = "create"
	OpAccept     Operation = "accept"
	OpSubmit     Operation = "submit"
	OpConfirm    Operation = "confirm"
	OpClaim      Operation = "claim"
	OpCancel     Operation = "cancel"
)

// Role is the party an operation requires as caller.
type Role uint8

const (
	RoleSponsor Role = iota + 1
	RoleWorker
)

type guard struct {
	from Status
	role Role
	to   Status
}

// guards is the transition table for operations on an existing record.
var guards = map[Operation]guard{
	OpAccept:  {from: StatusOpen, role: RoleSponsor, to: StatusAccepted},
	OpSubmit:  {from: StatusAccepted, role: RoleWorker, to: StatusSubmitted},
	OpConfirm: {from: StatusSubmitted, role: RoleSponsor, to: StatusConfirmed},
	OpClaim:   {from: StatusConfirmed, role: RoleWorker, to: StatusClaimed},
	OpCancel:  {from: StatusOpen, role: RoleSponsor, to: StatusCancelled},
}

// check evaluates status before caller.
func (g guard) check(b Bounty, caller Address) error {
	if b.Status != g.from {
		return ErrInvalidBountyStatus
	}
	switch g.role {
	case RoleSponsor:
		if caller != b.Sponsor {
			return ErrUnauthorizedSponsor
		}
	case RoleWorker:
		if caller != b.Worker {
			return ErrUnauthorizedWorker
		}
	}
	return nil
}

// Allowed reports whether op may run on b for caller, without running it.
func Allowed(op Operation, b Bounty, caller Address) error {
	g, ok := guards[op]
	if !ok {
		return ErrInvalidBountyStatus
	}
	return g.check(b, caller)
}

// NextStatus returns the status op leads to from its required status.
func NextStatus(op Operation) (from, to Status, ok bool) {
	g, ok := guards[op]
	return g.from, g.to, ok
}

func validateCreate(p CreateParams) error {
	if len(p.TaskID) > MaxTaskIDLen {
		return ErrTaskIDTooLong
	}
	if len(p.TaskURL) > MaxTaskURLLen {
		return ErrTaskURLTooLong
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	return nil
}
