package bounty

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Byte caps for the variable-length record fields.
const (
	MaxTaskIDLen        = 200
	MaxTaskURLLen       = 500
	MaxSubmissionURLLen = 500
)

// Status is the lifecycle stage of a bounty.
type Status uint8

const (
	StatusOpen Status = iota
	StatusAccepted
	StatusSubmitted
	StatusConfirmed
	StatusClaimed
	StatusCancelled
)

var statusNames = [...]string{"Open", "Accepted", "Submitted", "Confirmed", "Claimed", "Cancelled"}

func (s Status) Valid() bool { return int(s) < len(statusNames) }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusClaimed || s == StatusCancelled }

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus accepts status names case-insensitively.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Hash is a 32-byte task content digest.
type Hash [32]byte

// TaskHash returns the Keccak-256 digest clients use to identify task content.
func TaskHash(content []byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(content)
	copy(h[:], d.Sum(nil))
	return h
}

// ParseHash decodes a 64-char hex digest, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid task hash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid task hash: want %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Registry is the singleton holding the id counter.
type Registry struct {
	Authority    Address `json:"authority"`
	NextBountyID uint64  `json:"next_bounty_id"`
	Nonce        uint8   `json:"nonce"`
}

// Bounty is the persistent record of one bounty.
type Bounty struct {
	BountyID      uint64  `json:"bounty_id"`
	TaskID        string  `json:"task_id"`
	TaskURL       string  `json:"task_url"`
	TaskHash      Hash    `json:"task_hash"`
	Sponsor       Address `json:"sponsor"`
	Worker        Address `json:"worker"`
	Amount        uint64  `json:"amount,string"`
	Asset         Address `json:"asset"`
	Status        Status  `json:"status"`
	CreatedAt     int64   `json:"created_at"`
	AcceptedAt    int64   `json:"accepted_at"`
	SubmittedAt   int64   `json:"submitted_at"`
	SubmissionURL string  `json:"submission_url"`
	ConfirmedAt   int64   `json:"confirmed_at"`
	ClaimedAt     int64   `json:"claimed_at"`
	CancelledAt   int64   `json:"cancelled_at"`
}

// HasWorker reports whether a worker has been assigned.
func (b Bounty) HasWorker() bool { return b.Worker != NullAddress }

// CreateParams are the sponsor-supplied inputs to CreateBounty.
type CreateParams struct {
	TaskID   string
	TaskURL  string
	TaskHash Hash
	Amount   uint64
}

// Receipt describes one committed transition.
type Receipt struct {
	TxID   uuid.UUID `json:"tx_id"`
	Bounty Bounty    `json:"bounty"`
	Event  Event     `json:"event"`
}
