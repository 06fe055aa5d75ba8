package bounty

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Namespace tags for derived addresses.
const (
	RegistrySeed = "bounty_manager"
	BountySeed   = "bounty"
	VaultSeed    = "bounty_vault"
)

// AddressVersion is mixed into every derived address and recorded on the registry.
const AddressVersion uint8 = 1

// Address is a 32-byte identity. People are identified by their x-only public key;
// registry, bounty records and vaults by a derived value.
type Address [32]byte

// NullAddress marks "no worker assigned".
var NullAddress Address

// NativeAsset is the asset identifier of the ledger's base currency.
var NativeAsset Address

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := base58.Decode(s)
	if len(raw) != len(a) {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(a), len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address length %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func derive(seed string, id []byte) Address {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write(id)
	h.Write([]byte{AddressVersion})
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

func idBytes(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

// RegistryAddress is where the singleton registry lives.
func RegistryAddress() Address { return derive(RegistrySeed, nil) }

// BountyAddress is where the record for id lives.
func BountyAddress(id uint64) Address { return derive(BountySeed, idBytes(id)) }

// VaultAddress is the custody account for id.
func VaultAddress(id uint64) Address { return derive(VaultSeed, idBytes(id)) }
