package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/metrics"
	"github.com/cyl19970726/Code3/models"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

// BountyService is the single entry point transports use. It runs the engine,
// records metrics and publishes committed events.
type BountyService struct {
	store   storebounty.Store
	engine  *bounty.Engine
	metrics *metrics.Metrics
	hub     *EventHub
	qr      *QRCodeService
	logger  *slog.Logger
}

// NewBountyService wires an engine over store. metrics and hub may be nil.
func NewBountyService(store storebounty.Store, m *metrics.Metrics, hub *EventHub, logger *slog.Logger, opts ...bounty.Option) *BountyService {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewEventHub()
	}
	opts = append([]bounty.Option{bounty.WithLogger(logger)}, opts...)
	return &BountyService{
		store:   store,
		engine:  bounty.NewEngine(store, opts...),
		metrics: m,
		hub:     hub,
		qr:      NewQRCodeService(256),
		logger:  logger,
	}
}

// Hub returns the event hub committed events are published on.
func (s *BountyService) Hub() *EventHub { return s.hub }

// Initialize creates the registry.
func (s *BountyService) Initialize(ctx context.Context, authority bounty.Address) (bounty.Registry, error) {
	start := time.Now()
	reg, err := s.engine.Initialize(ctx, authority)
	s.observe(bounty.OpInitialize, start, err)
	return reg, err
}

// Create opens a bounty funded by sponsor.
func (s *BountyService) Create(ctx context.Context, sponsor bounty.Address, p bounty.CreateParams) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.CreateBounty(ctx, sponsor, p)
	s.observe(bounty.OpCreate, start, err)
	if err != nil {
		return rec, err
	}
	if s.metrics != nil {
		s.metrics.EscrowIn(p.Amount)
	}
	return s.committed(rec), nil
}

// Accept assigns worker to bounty id.
func (s *BountyService) Accept(ctx context.Context, caller bounty.Address, id uint64, worker bounty.Address) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.AcceptBounty(ctx, caller, id, worker)
	return s.finish(bounty.OpAccept, start, rec, err)
}

// Submit records the worker's deliverable.
func (s *BountyService) Submit(ctx context.Context, caller bounty.Address, id uint64, submissionURL string) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.SubmitBounty(ctx, caller, id, submissionURL)
	return s.finish(bounty.OpSubmit, start, rec, err)
}

// Confirm approves the submission.
func (s *BountyService) Confirm(ctx context.Context, caller bounty.Address, id uint64) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.ConfirmBounty(ctx, caller, id)
	return s.finish(bounty.OpConfirm, start, rec, err)
}

// Claim pays the vault out to the worker.
func (s *BountyService) Claim(ctx context.Context, caller bounty.Address, id uint64) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.ClaimBounty(ctx, caller, id)
	if err == nil && s.metrics != nil {
		s.metrics.EscrowOut(rec.Bounty.Amount)
	}
	return s.finish(bounty.OpClaim, start, rec, err)
}

// Cancel refunds an open bounty to its sponsor.
func (s *BountyService) Cancel(ctx context.Context, caller bounty.Address, id uint64) (bounty.Receipt, error) {
	start := time.Now()
	rec, err := s.engine.CancelBounty(ctx, caller, id)
	if err == nil && s.metrics != nil {
		s.metrics.EscrowOut(rec.Bounty.Amount)
	}
	return s.finish(bounty.OpCancel, start, rec, err)
}

func (s *BountyService) finish(op bounty.Operation, start time.Time, rec bounty.Receipt, err error) (bounty.Receipt, error) {
	s.observe(op, start, err)
	if err != nil {
		return rec, err
	}
	return s.committed(rec), nil
}

func (s *BountyService) observe(op bounty.Operation, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(ErrorCode(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(op), result, time.Since(start))
	}
	if err != nil {
		level := slog.LevelWarn
		if bounty.CodeOf(err) == bounty.CodeInternal {
			level = slog.LevelError
		}
		s.logger.Log(context.Background(), level, "bounty operation failed",
			"operation", string(op), "code", result, "error", err)
	}
}

// committed logs and publishes the event of a committed unit.
func (s *BountyService) committed(rec bounty.Receipt) bounty.Receipt {
	s.logger.Info("bounty event",
		"kind", string(rec.Event.Kind),
		"bounty_id", rec.Event.BountyID,
		"seq", rec.Event.Seq,
		"tx_id", rec.TxID.String())
	s.hub.Publish(rec.Event)
	return rec
}

// Registry returns the registry singleton.
func (s *BountyService) Registry(ctx context.Context) (bounty.Registry, error) {
	return s.store.GetRegistry(ctx)
}

// Get returns bounty id.
func (s *BountyService) Get(ctx context.Context, id uint64) (bounty.Bounty, error) {
	return s.store.GetBounty(ctx, id)
}

// GetByTaskHash reports the bounty carrying hash, if any. A miss is not an error.
func (s *BountyService) GetByTaskHash(ctx context.Context, hash bounty.Hash) (models.TaskHashLookup, error) {
	b, err := s.store.FindByTaskHash(ctx, hash)
	if errors.Is(err, bounty.ErrBountyNotFound) {
		return models.TaskHashLookup{}, nil
	}
	if err != nil {
		return models.TaskHashLookup{}, err
	}
	id := b.BountyID
	return models.TaskHashLookup{BountyID: &id, Found: true}, nil
}

// List returns one page of bounties matching f.
func (s *BountyService) List(ctx context.Context, f storebounty.Filter) (models.BountyList, error) {
	items, total, err := s.store.ListBounties(ctx, f)
	if err != nil {
		return models.BountyList{}, err
	}
	ids := make([]uint64, 0, len(items))
	for _, b := range items {
		ids = append(ids, b.BountyID)
	}
	limit := f.Limit
	if limit == 0 {
		limit = storebounty.DefaultListLimit
	}
	return models.BountyList{
		Bounties:  items,
		BountyIDs: ids,
		Count:     len(items),
		Total:     total,
		Offset:    f.Offset,
		Limit:     limit,
	}, nil
}

// ListBySponsor lists bounties funded by sponsor.
func (s *BountyService) ListBySponsor(ctx context.Context, sponsor bounty.Address, offset, limit int) (models.BountyList, error) {
	return s.List(ctx, storebounty.Filter{Sponsor: &sponsor, Offset: offset, Limit: limit})
}

// ListByWorker lists bounties assigned to worker.
func (s *BountyService) ListByWorker(ctx context.Context, worker bounty.Address, offset, limit int) (models.BountyList, error) {
	return s.List(ctx, storebounty.Filter{Worker: &worker, Offset: offset, Limit: limit})
}

// Events returns the audit log filtered by f.
func (s *BountyService) Events(ctx context.Context, f bounty.EventFilter) ([]bounty.Event, error) {
	if f.Limit < 0 {
		return nil, Invalid("limit", storebounty.ErrInvalidPageArg)
	}
	return s.store.ListEvents(ctx, f)
}

// Balance returns the native balance of addr.
func (s *BountyService) Balance(ctx context.Context, addr bounty.Address) (models.BalanceResponse, error) {
	bal, err := s.store.Balance(ctx, addr)
	if err != nil {
		return models.BalanceResponse{}, err
	}
	return models.BalanceResponse{Address: addr, Balance: bal}, nil
}

// Vault describes the custody account of bounty id.
func (s *BountyService) Vault(ctx context.Context, id uint64) (models.VaultInfo, error) {
	b, err := s.store.GetBounty(ctx, id)
	if err != nil {
		return models.VaultInfo{}, err
	}
	addr := bounty.VaultAddress(id)
	bal, err := s.store.Balance(ctx, addr)
	if err != nil {
		return models.VaultInfo{}, err
	}
	return models.VaultInfo{
		BountyID: id,
		Address:  addr,
		Balance:  bal,
		Amount:   b.Amount,
		Status:   b.Status,
	}, nil
}

// VaultQR renders a PNG QR code of the vault address of bounty id.
func (s *BountyService) VaultQR(ctx context.Context, id uint64) ([]byte, error) {
	b, err := s.store.GetBounty(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.VaultQR(bounty.VaultAddress(id), b.Amount, id)
	if err != nil {
		return nil, fmt.Errorf("bounty %d: %w", id, err)
	}
	return png, nil
}

// Fund credits addr from the development faucet.
func (s *BountyService) Fund(ctx context.Context, addr bounty.Address, amount uint64) (models.BalanceResponse, error) {
	bal, err := s.store.Fund(ctx, addr, amount)
	if err != nil {
		return models.BalanceResponse{}, err
	}
	s.logger.Info("faucet funded account", "address", addr.String(), "amount", amount, "balance", bal)
	return models.BalanceResponse{Address: addr, Balance: bal}, nil
}
