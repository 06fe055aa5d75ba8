package bounty

import (
	"context"
	"fmt"

	"github.com/cyl19970726/Code3/core/bounty"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrFundVault      = Err("vault accounts cannot be funded directly")
	ErrUnknownDriver  = Err("unknown store driver")
	ErrInvalidAmount  = Err("amount must be greater than zero")
	ErrInvalidPageArg = Err("offset and limit must not be negative")
)

// DefaultListLimit caps list queries that pass no limit.
const DefaultListLimit = 100

// Filter selects bounties for listing. Zero fields match everything.
type Filter struct {
	Sponsor *bounty.Address
	Worker  *bounty.Address
	Status  *bounty.Status
	Offset  int
	Limit   int
}

// Match reports whether b passes every set field of f.
func (f Filter) Match(b bounty.Bounty) bool {
	if f.Sponsor != nil && b.Sponsor != *f.Sponsor {
		return false
	}
	if f.Worker != nil && b.Worker != *f.Worker {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	return true
}

func (f Filter) normalize() (Filter, error) {
	if f.Offset < 0 || f.Limit < 0 {
		return f, ErrInvalidPageArg
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	return f, nil
}

// Store is a ledger substrate plus the read side used by transports.
type Store interface {
	bounty.Ledger

	GetRegistry(ctx context.Context) (bounty.Registry, error)
	GetBounty(ctx context.Context, id uint64) (bounty.Bounty, error)
	// FindByTaskHash returns the lowest-id bounty carrying hash.
	FindByTaskHash(ctx context.Context, hash bounty.Hash) (bounty.Bounty, error)
	// ListBounties returns matches ordered by id, plus the total match count.
	ListBounties(ctx context.Context, f Filter) ([]bounty.Bounty, int, error)
	Balance(ctx context.Context, addr bounty.Address) (uint64, error)
	ListEvents(ctx context.Context, f bounty.EventFilter) ([]bounty.Event, error)
	// Fund credits a non-vault account. Development faucet only.
	Fund(ctx context.Context, addr bounty.Address, amount uint64) (uint64, error)
	Close()
}

// Options carries driver settings for Open.
type Options struct {
	Driver     string
	PGDSN      string
	SQLitePath string
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPGStore(ctx, opts.PGDSN)
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
