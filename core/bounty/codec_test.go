package bounty

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRecord() Bounty {
	return Bounty{
		BountyID:      7,
		TaskID:        strings.Repeat("t", MaxTaskIDLen),
		TaskURL:       strings.Repeat("u", MaxTaskURLLen),
		TaskHash:      TaskHash([]byte("x")),
		Sponsor:       Address{1},
		Worker:        Address{2},
		Amount:        1000,
		Asset:         NativeAsset,
		Status:        StatusSubmitted,
		CreatedAt:     10,
		AcceptedAt:    11,
		SubmittedAt:   12,
		SubmissionURL: strings.Repeat("s", MaxSubmissionURLLen),
	}
}

func TestEncodeBountyMaxSize(t *testing.T) {
	raw, err := EncodeBounty(fullRecord())
	require.NoError(t, err)
	assert.Len(t, raw, MaxRecordSize)

	got, err := DecodeBounty(raw)
	require.NoError(t, err)
	assert.Equal(t, fullRecord(), got)
}

func TestEncodeBountyRejectsOverCap(t *testing.T) {
	b := fullRecord()
	b.SubmissionURL += "s"
	_, err := EncodeBounty(b)
	assert.ErrorIs(t, err, ErrSubmissionURLTooLong)
}

func TestDecodeBountyRejectsCorruption(t *testing.T) {
	raw, err := EncodeBounty(Bounty{BountyID: 1, TaskID: "T", Amount: 5})
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeBounty(raw[:len(raw)-1])
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodeBounty(append(append([]byte{}, raw...), 0))
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
	t.Run("task id length over cap", func(t *testing.T) {
		bad := append([]byte{}, raw...)
		// length prefix of task_id sits after version and id
		bad[9], bad[10] = 0xC9, 0x00
		_, err := DecodeBounty(bad)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
	t.Run("unknown status", func(t *testing.T) {
		b := Bounty{BountyID: 1, Status: Status(42)}
		_, err := EncodeBounty(b)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := DecodeBounty(nil)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestRegistryEncoding(t *testing.T) {
	reg := NewRegistry(Address{9})
	raw := EncodeRegistry(reg)
	assert.Len(t, raw, RegistrySize)

	got, err := DecodeRegistry(raw)
	require.NoError(t, err)
	assert.Equal(t, reg, got)

	_, err = DecodeRegistry(raw[:5])
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestBountyJSON(t *testing.T) {
	b := fullRecord()
	b.Amount = 18446744073709551615
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"Submitted"`)
	assert.Contains(t, string(raw), `"amount":"18446744073709551615"`)

	var got Bounty
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, b, got)
}
