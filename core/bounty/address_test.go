package bounty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedAddressesAreDistinct(t *testing.T) {
	seen := map[Address]string{RegistryAddress(): "registry"}
	for id := uint64(0); id < 500; id++ {
		for name, a := range map[string]Address{"bounty": BountyAddress(id), "vault": VaultAddress(id)} {
			prev, dup := seen[a]
			require.False(t, dup, "%s %d collides with %s", name, id, prev)
			seen[a] = name
		}
	}
}

func TestDerivedAddressesAreStable(t *testing.T) {
	assert.Equal(t, BountyAddress(1), BountyAddress(1))
	assert.Equal(t, VaultAddress(1), VaultAddress(1))
	assert.NotEqual(t, BountyAddress(1), VaultAddress(1))
}

func TestAddressText(t *testing.T) {
	a := VaultAddress(3)
	parsed, err := ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	assert.Equal(t, "11111111111111111111111111111111", NullAddress.String())
	assert.True(t, NullAddress.IsZero())

	_, err = ParseAddress("abc")
	assert.Error(t, err)
}

func TestTaskHashAndParse(t *testing.T) {
	h := TaskHash([]byte(""))
	// Keccak-256 of the empty string.
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", h.String())

	parsed, err := ParseHash("0x" + h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("beef")
	assert.Error(t, err)
}

func TestGuardTable(t *testing.T) {
	b := Bounty{Sponsor: Address{1}, Worker: Address{2}, Status: StatusSubmitted}

	assert.NoError(t, Allowed(OpConfirm, b, Address{1}))
	assert.ErrorIs(t, Allowed(OpConfirm, b, Address{2}), ErrUnauthorizedSponsor)
	assert.ErrorIs(t, Allowed(OpClaim, b, Address{2}), ErrInvalidBountyStatus)

	from, to, ok := NextStatus(OpClaim)
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, from)
	assert.Equal(t, StatusClaimed, to)

	_, _, ok = NextStatus(OpCreate)
	assert.False(t, ok)
}

func TestRegistryAllocate(t *testing.T) {
	reg := NewRegistry(Address{1})
	id, next, err := reg.AllocateID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), next.NextBountyID)
	assert.Equal(t, uint64(1), reg.NextBountyID)

	reg.NextBountyID = ^uint64(0)
	_, _, err = reg.AllocateID()
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}
