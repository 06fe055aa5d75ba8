package bounty

import "math"

// NewRegistry returns a freshly initialized registry.
func NewRegistry(authority Address) Registry {
	return Registry{Authority: authority, NextBountyID: 1, Nonce: AddressVersion}
}

// AllocateID returns the next id and the registry advanced past it. The
// receiver is left untouched, so a failed unit never persists a bumped counter.
func (r Registry) AllocateID() (uint64, Registry, error) {
	if r.NextBountyID == math.MaxUint64 {
		return 0, r, ErrArithmeticOverflow
	}
	id := r.NextBountyID
	r.NextBountyID++
	return id, r, nil
}
