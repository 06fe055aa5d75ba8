package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/cyl19970726/Code3/core/bounty"
)

// Request signing headers.
const (
	HeaderIdentity  = "X-Bounty-Identity"
	HeaderTimestamp = "X-Bounty-Timestamp"
	HeaderSignature = "X-Bounty-Signature"
)

var (
	ErrBadSignature          = errors.New("signature does not verify")
	ErrNonCanonicalSignature = errors.New("signature must be lowercase hex")
)

// GenerateKey returns a fresh secp256k1 key.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// ParsePrivateKey decodes a hex-encoded 32-byte secret.
func ParsePrivateKey(s string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}

// Identity is the x-only public key of priv, used as the caller address.
func Identity(priv *btcec.PrivateKey) bounty.Address {
	var a bounty.Address
	copy(a[:], schnorr.SerializePubKey(priv.PubKey()))
	return a
}

// RequestDigest is the message a caller signs for one HTTP request.
func RequestDigest(method, path string, timestamp int64, body []byte) [32]byte {
	bodyHash := sha256.Sum256(body)
	msg := strings.Join([]string{
		strings.ToUpper(method),
		path,
		strconv.FormatInt(timestamp, 10),
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
	return sha256.Sum256([]byte(msg))
}

// SignRequest returns the hex BIP-340 signature over RequestDigest.
func SignRequest(priv *btcec.PrivateKey, method, path string, timestamp int64, body []byte) (string, error) {
	digest := RequestDigest(method, path, timestamp, body)
	sig, err := schnorr.Sign(priv, digest[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// VerifyRequest checks sigHex against identity for the given request.
func VerifyRequest(identity bounty.Address, method, path string, timestamp int64, body []byte, sigHex string) error {
	pub, err := schnorr.ParsePubKey(identity[:])
	if err != nil {
		return fmt.Errorf("identity is not a valid public key: %w", err)
	}
	raw, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if hex.EncodeToString(raw) != sigHex {
		return ErrNonCanonicalSignature
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	digest := RequestDigest(method, path, timestamp, body)
	if !sig.Verify(digest[:], pub) {
		return ErrBadSignature
	}
	return nil
}
