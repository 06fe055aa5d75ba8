package bounty

import (
	"context"
	"time"
)

// Ledger runs fn as one all-or-nothing unit. If fn returns an error nothing it
// wrote is kept. Implementations serialize units that touch the same records.
type Ledger interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the record and account view handed to a Ledger unit.
type Tx interface {
	// Registry returns ErrNotInitialized when no registry exists.
	Registry(ctx context.Context) (Registry, error)
	// CreateRegistry returns ErrAlreadyInitialized when one exists.
	CreateRegistry(ctx context.Context, r Registry) error
	SaveRegistry(ctx context.Context, r Registry) error

	// Bounty returns ErrBountyNotFound when nothing lives at addr.
	Bounty(ctx context.Context, addr Address) (Bounty, error)
	// CreateBounty returns ErrAccountExists when addr is taken.
	CreateBounty(ctx context.Context, addr Address, b Bounty) error
	SaveBounty(ctx context.Context, addr Address, b Bounty) error

	// OpenVault registers vault as a custody account with zero balance. A plain
	// account already at that address is taken over and its balance dropped,
	// since nobody holds a key for a derived address. It returns
	// ErrAccountExists when a vault already lives there.
	OpenVault(ctx context.Context, vault Address) error
	// Transfer moves native units between accounts. Debiting a vault fails with
	// ErrVaultLocked.
	Transfer(ctx context.Context, from, to Address, amount uint64) error
	// Release debits a vault. It fails with ErrVaultLocked unless auth was
	// issued for that vault.
	Release(ctx context.Context, auth Custody, vault, to Address, amount uint64) error
	Balance(ctx context.Context, addr Address) (uint64, error)

	// AppendEvent stores evt and returns the sequence number it carries once
	// the unit commits.
	AppendEvent(ctx context.Context, evt Event) (uint64, error)
}

// Custody authorizes a debit of one vault. Only this package can issue one, so
// no external identity can move vault funds.
type Custody struct {
	vault Address
}

func custodyOf(vault Address) Custody { return Custody{vault: vault} }

// Authorizes reports whether c permits debiting vault.
func (c Custody) Authorizes(vault Address) bool {
	return !c.vault.IsZero() && c.vault == vault
}

// Clock supplies transition timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// CheckedAdd adds two balances and reports overflow.
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
