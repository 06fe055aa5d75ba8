package bounty

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const recordVersion byte = 1

// MaxRecordSize is the largest encoded Bounty.
const MaxRecordSize = 1 + // version
	8 + // bounty_id
	4 + MaxTaskIDLen +
	4 + MaxTaskURLLen +
	32 + // task_hash
	32 + // sponsor
	32 + // worker
	8 + // amount
	32 + // asset
	1 + // status
	8 + 8 + 8 + // created, accepted, submitted
	4 + MaxSubmissionURLLen +
	8 + 8 + 8 // confirmed, claimed, cancelled

// RegistrySize is the encoded size of a Registry.
const RegistrySize = 1 + 32 + 8 + 1

type binWriter struct {
	buf bytes.Buffer
}

func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeInt64(v int64) { w.writeUint64(uint64(v)) }

func (w *binWriter) writeString(s string) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
	w.buf.Write(b[:])
	w.buf.WriteString(s)
}

type binReader struct {
	data []byte
	off  int
	err  error
}

func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrInvalidRecord, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binReader) readByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binReader) readUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *binReader) readInt64() int64 { return int64(r.readUint64()) }

func (r *binReader) read32(dst []byte) {
	if b := r.take(32); b != nil {
		copy(dst, b)
	}
}

func (r *binReader) readString(max int, field string) string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(b)
	if int64(n) > int64(max) {
		r.err = fmt.Errorf("%w: %s length %d exceeds %d", ErrInvalidRecord, field, n, max)
		return ""
	}
	return string(r.take(int(n)))
}

// EncodeBounty serializes b in the fixed record layout. Over-cap strings are
// rejected with the matching lifecycle error.
func EncodeBounty(b Bounty) ([]byte, error) {
	switch {
	case len(b.TaskID) > MaxTaskIDLen:
		return nil, ErrTaskIDTooLong
	case len(b.TaskURL) > MaxTaskURLLen:
		return nil, ErrTaskURLTooLong
	case len(b.SubmissionURL) > MaxSubmissionURLLen:
		return nil, ErrSubmissionURLTooLong
	case !b.Status.Valid():
		return nil, fmt.Errorf("%w: status %d", ErrInvalidRecord, b.Status)
	}

	w := &binWriter{}
	w.buf.Grow(MaxRecordSize)
	w.buf.WriteByte(recordVersion)
	w.writeUint64(b.BountyID)
	w.writeString(b.TaskID)
	w.writeString(b.TaskURL)
	w.buf.Write(b.TaskHash[:])
	w.buf.Write(b.Sponsor[:])
	w.buf.Write(b.Worker[:])
	w.writeUint64(b.Amount)
	w.buf.Write(b.Asset[:])
	w.buf.WriteByte(byte(b.Status))
	w.writeInt64(b.CreatedAt)
	w.writeInt64(b.AcceptedAt)
	w.writeInt64(b.SubmittedAt)
	w.writeString(b.SubmissionURL)
	w.writeInt64(b.ConfirmedAt)
	w.writeInt64(b.ClaimedAt)
	w.writeInt64(b.CancelledAt)
	return w.buf.Bytes(), nil
}

// DecodeBounty parses a record produced by EncodeBounty.
func DecodeBounty(data []byte) (Bounty, error) {
	r := &binReader{data: data}
	var b Bounty
	if v := r.readByte(); r.err == nil && v != recordVersion {
		return Bounty{}, fmt.Errorf("%w: version %d", ErrInvalidRecord, v)
	}
	b.BountyID = r.readUint64()
	b.TaskID = r.readString(MaxTaskIDLen, "task_id")
	b.TaskURL = r.readString(MaxTaskURLLen, "task_url")
	r.read32(b.TaskHash[:])
	r.read32(b.Sponsor[:])
	r.read32(b.Worker[:])
	b.Amount = r.readUint64()
	r.read32(b.Asset[:])
	b.Status = Status(r.readByte())
	b.CreatedAt = r.readInt64()
	b.AcceptedAt = r.readInt64()
	b.SubmittedAt = r.readInt64()
	b.SubmissionURL = r.readString(MaxSubmissionURLLen, "submission_url")
	b.ConfirmedAt = r.readInt64()
	b.ClaimedAt = r.readInt64()
	b.CancelledAt = r.readInt64()
	if r.err != nil {
		return Bounty{}, r.err
	}
	if !b.Status.Valid() {
		return Bounty{}, fmt.Errorf("%w: status %d", ErrInvalidRecord, b.Status)
	}
	if r.off != len(data) {
		return Bounty{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecord, len(data)-r.off)
	}
	return b, nil
}

// EncodeRegistry serializes the registry singleton.
func EncodeRegistry(reg Registry) []byte {
	w := &binWriter{}
	w.buf.WriteByte(recordVersion)
	w.buf.Write(reg.Authority[:])
	w.writeUint64(reg.NextBountyID)
	w.buf.WriteByte(reg.Nonce)
	return w.buf.Bytes()
}

// DecodeRegistry parses the output of EncodeRegistry.
func DecodeRegistry(data []byte) (Registry, error) {
	if len(data) != RegistrySize {
		return Registry{}, fmt.Errorf("%w: registry size %d", ErrInvalidRecord, len(data))
	}
	r := &binReader{data: data}
	var reg Registry
	if v := r.readByte(); v != recordVersion {
		return Registry{}, fmt.Errorf("%w: version %d", ErrInvalidRecord, v)
	}
	r.read32(reg.Authority[:])
	reg.NextBountyID = r.readUint64()
	reg.Nonce = r.readByte()
	return reg, r.err
}
