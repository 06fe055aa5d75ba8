package bounty

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Engine executes lifecycle transitions against a Ledger. It holds no state of
// its own; callers are expected to be authenticated by the transport.
type Engine struct {
	ledger Ledger
	clock  Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over ledger.
func NewEngine(ledger Ledger, opts ...Option) *Engine {
	e := &Engine{ledger: ledger, clock: SystemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize creates the registry with authority as its manager.
func (e *Engine) Initialize(ctx context.Context, authority Address) (Registry, error) {
	reg := NewRegistry(authority)
	err := e.ledger.Update(ctx, func(tx Tx) error {
		return tx.CreateRegistry(ctx, reg)
	})
	if err != nil {
		return Registry{}, fmt.Errorf("initialize registry: %w", err)
	}
	e.logger.Info("registry initialized", "authority", authority.String())
	return reg, nil
}

// CreateBounty escrows p.Amount from sponsor into a new vault and opens the bounty.
func (e *Engine) CreateBounty(ctx context.Context, sponsor Address, p CreateParams) (Receipt, error) {
	if err := validateCreate(p); err != nil {
		return Receipt{}, fmt.Errorf("create bounty: %w", err)
	}

	txID := uuid.New()
	now := e.clock.Now().Unix()
	var rec Receipt
	err := e.ledger.Update(ctx, func(tx Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		id, next, err := reg.AllocateID()
		if err != nil {
			return err
		}

		vault := VaultAddress(id)
		if err := tx.OpenVault(ctx, vault); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, sponsor, vault, p.Amount); err != nil {
			return err
		}

		b := Bounty{
			BountyID:  id,
			TaskID:    p.TaskID,
			TaskURL:   p.TaskURL,
			TaskHash:  p.TaskHash,
			Sponsor:   sponsor,
			Worker:    NullAddress,
			Amount:    p.Amount,
			Asset:     NativeAsset,
			Status:    StatusOpen,
			CreatedAt: now,
		}
		if err := tx.CreateBounty(ctx, BountyAddress(id), b); err != nil {
			return err
		}
		if err := tx.SaveRegistry(ctx, next); err != nil {
			return err
		}

		evt := eventFor(EventCreated, txID, b, now)
		seq, err := tx.AppendEvent(ctx, evt)
		if err != nil {
			return err
		}
		evt.Seq = seq
		rec = Receipt{TxID: txID, Bounty: b, Event: evt}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("create bounty: %w", err)
	}
	e.logger.Debug("bounty created", "bounty_id", rec.Bounty.BountyID, "amount", p.Amount)
	return rec, nil
}

// AcceptBounty assigns worker to an open bounty. Only the sponsor may call it.
func (e *Engine) AcceptBounty(ctx context.Context, caller Address, id uint64, worker Address) (Receipt, error) {
	return e.transition(ctx, OpAccept, caller, id, EventAccepted, func(_ Tx, b *Bounty, now int64) error {
		b.Worker = worker
		b.AcceptedAt = now
		return nil
	})
}

// SubmitBounty records the worker's submission.
func (e *Engine) SubmitBounty(ctx context.Context, caller Address, id uint64, submissionURL string) (Receipt, error) {
	return e.transition(ctx, OpSubmit, caller, id, EventSubmitted, func(_ Tx, b *Bounty, now int64) error {
		if len(submissionURL) > MaxSubmissionURLLen {
			return ErrSubmissionURLTooLong
		}
		b.SubmissionURL = submissionURL
		b.SubmittedAt = now
		return nil
	})
}

// ConfirmBounty records the sponsor's approval of the submission.
func (e *Engine) ConfirmBounty(ctx context.Context, caller Address, id uint64) (Receipt, error) {
	return e.transition(ctx, OpConfirm, caller, id, EventConfirmed, func(_ Tx, b *Bounty, now int64) error {
		b.ConfirmedAt = now
		return nil
	})
}

// ClaimBounty pays the full vault balance to the worker.
func (e *Engine) ClaimBounty(ctx context.Context, caller Address, id uint64) (Receipt, error) {
	return e.transition(ctx, OpClaim, caller, id, EventClaimed, func(tx Tx, b *Bounty, now int64) error {
		vault := VaultAddress(b.BountyID)
		if err := tx.Release(ctx, custodyOf(vault), vault, b.Worker, b.Amount); err != nil {
			return err
		}
		b.ClaimedAt = now
		return nil
	})
}

// CancelBounty refunds an open bounty to its sponsor.
func (e *Engine) CancelBounty(ctx context.Context, caller Address, id uint64) (Receipt, error) {
	return e.transition(ctx, OpCancel, caller, id, EventCancelled, func(tx Tx, b *Bounty, now int64) error {
		vault := VaultAddress(b.BountyID)
		if err := tx.Release(ctx, custodyOf(vault), vault, b.Sponsor, b.Amount); err != nil {
			return err
		}
		b.CancelledAt = now
		return nil
	})
}

type applyFunc func(tx Tx, b *Bounty, now int64) error

func (e *Engine) transition(ctx context.Context, op Operation, caller Address, id uint64, kind EventKind, apply applyFunc) (Receipt, error) {
	g := guards[op]
	txID := uuid.New()
	now := e.clock.Now().Unix()
	addr := BountyAddress(id)

	var rec Receipt
	err := e.ledger.Update(ctx, func(tx Tx) error {
		b, err := tx.Bounty(ctx, addr)
		if err != nil {
			return err
		}
		if err := g.check(b, caller); err != nil {
			return err
		}
		if err := apply(tx, &b, now); err != nil {
			return err
		}
		b.Status = g.to
		if err := tx.SaveBounty(ctx, addr, b); err != nil {
			return err
		}
		evt := eventFor(kind, txID, b, now)
		seq, err := tx.AppendEvent(ctx, evt)
		if err != nil {
			return err
		}
		evt.Seq = seq
		rec = Receipt{TxID: txID, Bounty: b, Event: evt}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("%s bounty %d: %w", op, id, err)
	}
	e.logger.Debug("bounty transition", "op", string(op), "bounty_id", id, "status", g.to.String())
	return rec, nil
}
