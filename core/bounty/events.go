package bounty

import "github.com/google/uuid"

// EventKind names the transition an event records.
type EventKind string

const (
	EventCreated   EventKind = "BountyCreated"
	EventAccepted  EventKind = "BountyAccepted"
	EventSubmitted EventKind = "BountySubmitted"
	EventConfirmed EventKind = "BountyConfirmed"
	EventClaimed   EventKind = "BountyClaimed"
	EventCancelled EventKind = "BountyCancelled"
)

// Event is an audit entry appended once per successful transition.
// Seq is assigned by the substrate on append.
type Event struct {
	Seq           uint64    `json:"seq"`
	ID            uuid.UUID `json:"id"`
	TxID          uuid.UUID `json:"tx_id"`
	Kind          EventKind `json:"kind"`
	BountyID      uint64    `json:"bounty_id"`
	Sponsor       *Address  `json:"sponsor,omitempty"`
	Worker        *Address  `json:"worker,omitempty"`
	Amount        uint64    `json:"amount,omitempty,string"`
	Asset         *Address  `json:"asset,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	TaskURL       string    `json:"task_url,omitempty"`
	TaskHash      *Hash     `json:"task_hash,omitempty"`
	SubmissionURL string    `json:"submission_url,omitempty"`
	Timestamp     int64     `json:"timestamp"`
}

// EventFilter selects events for readers. Zero values match everything.
type EventFilter struct {
	BountyID uint64
	AfterSeq uint64
	Limit    int
}

// Match reports whether evt passes the filter, ignoring Limit.
func (f EventFilter) Match(evt Event) bool {
	if f.BountyID != 0 && evt.BountyID != f.BountyID {
		return false
	}
	return evt.Seq > f.AfterSeq
}

func eventFor(kind EventKind, txID uuid.UUID, b Bounty, ts int64) Event {
	evt := Event{
		ID:        uuid.New(),
		TxID:      txID,
		Kind:      kind,
		BountyID:  b.BountyID,
		Timestamp: ts,
	}
	sponsor, worker, asset, hash := b.Sponsor, b.Worker, b.Asset, b.TaskHash
	switch kind {
	case EventCreated:
		evt.TaskID = b.TaskID
		evt.TaskURL = b.TaskURL
		evt.TaskHash = &hash
		evt.Sponsor = &sponsor
		evt.Amount = b.Amount
		evt.Asset = &asset
	case EventAccepted:
		evt.Worker = &worker
	case EventSubmitted:
		evt.SubmissionURL = b.SubmissionURL
	case EventConfirmed:
	case EventClaimed:
		evt.Worker = &worker
		evt.Amount = b.Amount
	case EventCancelled:
		evt.Sponsor = &sponsor
		evt.Amount = b.Amount
	}
	return evt
}
