package bounty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cyl19970726/Code3/core/bounty"
)

// SQLiteStore persists ledger state in a SQLite file through gorm. The pool is
// limited to one connection, which serializes every Update.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "bountyd.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&registryRow{}, &recordRow{}, &accountRow{}, &eventRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Update runs fn inside one gorm transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx bounty.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteTx{db: tx})
	})
}

type sqliteTx struct {
	db *gorm.DB
}

func (t *sqliteTx) Registry(_ context.Context) (bounty.Registry, error) {
	return loadRegistry(t.db)
}

func loadRegistry(db *gorm.DB) (bounty.Registry, error) {
	addr := bounty.RegistryAddress()
	var row registryRow
	err := db.Where("address = ?", addr[:]).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bounty.Registry{}, bounty.ErrNotInitialized
	}
	if err != nil {
		return bounty.Registry{}, err
	}
	return bounty.DecodeRegistry(row.Record)
}

func (t *sqliteTx) CreateRegistry(_ context.Context, r bounty.Registry) error {
	addr := bounty.RegistryAddress()
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&registryRow{Address: addr[:], Record: bounty.EncodeRegistry(r)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bounty.ErrAlreadyInitialized
	}
	return nil
}

func (t *sqliteTx) SaveRegistry(_ context.Context, r bounty.Registry) error {
	addr := bounty.RegistryAddress()
	res := t.db.Model(&registryRow{}).Where("address = ?", addr[:]).Update("record", bounty.EncodeRegistry(r))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bounty.ErrNotInitialized
	}
	return nil
}

func (t *sqliteTx) Bounty(_ context.Context, addr bounty.Address) (bounty.Bounty, error) {
	return firstBounty(t.db.Where("address = ?", addr[:]))
}

func firstBounty(q *gorm.DB) (bounty.Bounty, error) {
	var row recordRow
	err := q.Order("bounty_id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bounty.Bounty{}, bounty.ErrBountyNotFound
	}
	if err != nil {
		return bounty.Bounty{}, err
	}
	return bounty.DecodeBounty(row.Record)
}

func (t *sqliteTx) CreateBounty(_ context.Context, addr bounty.Address, b bounty.Bounty) error {
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	row := recordRow{
		Address:  addr[:],
		BountyID: int64(b.BountyID),
		Sponsor:  b.Sponsor[:],
		Worker:   b.Worker[:],
		Status:   int16(b.Status),
		TaskHash: b.TaskHash[:],
		Record:   raw,
	}
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bounty.ErrAccountExists
	}
	return nil
}

func (t *sqliteTx) SaveBounty(_ context.Context, addr bounty.Address, b bounty.Bounty) error {
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	res := t.db.Model(&recordRow{}).Where("address = ?", addr[:]).Updates(map[string]any{
		"worker": b.Worker[:],
		"status": int16(b.Status),
		"record": raw,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bounty.ErrBountyNotFound
	}
	return nil
}

func (t *sqliteTx) account(addr bounty.Address) (accountRow, bool, error) {
	var row accountRow
	err := t.db.Where("address = ?", addr[:]).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return accountRow{Address: addr[:]}, false, nil
	}
	return row, err == nil, err
}

func (t *sqliteTx) setBalance(addr bounty.Address, balance uint64) error {
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(&accountRow{Address: addr[:], Balance: int64(balance)}).Error
}

func (t *sqliteTx) OpenVault(_ context.Context, vault bounty.Address) error {
	row, found, err := t.account(vault)
	if err != nil {
		return err
	}
	if row.IsVault {
		return bounty.ErrAccountExists
	}
	if found {
		return t.db.Model(&accountRow{}).Where("address = ?", vault[:]).
			Updates(map[string]any{"balance": 0, "is_vault": true}).Error
	}
	return t.db.Create(&accountRow{Address: vault[:], IsVault: true}).Error
}

func (t *sqliteTx) move(from, to bounty.Address, amount uint64, allowVault bool) error {
	src, _, err := t.account(from)
	if err != nil {
		return err
	}
	if src.IsVault != allowVault {
		return bounty.ErrVaultLocked
	}
	have := uint64(src.Balance)
	if have < amount {
		return bounty.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	dst, _, err := t.account(to)
	if err != nil {
		return err
	}
	credited, ok := bounty.CheckedAdd(uint64(dst.Balance), amount)
	if !ok {
		return bounty.ErrBalanceOverflow
	}
	if err := t.setBalance(from, have-amount); err != nil {
		return err
	}
	return t.setBalance(to, credited)
}

func (t *sqliteTx) Transfer(_ context.Context, from, to bounty.Address, amount uint64) error {
	return t.move(from, to, amount, false)
}

func (t *sqliteTx) Release(_ context.Context, auth bounty.Custody, vault, to bounty.Address, amount uint64) error {
	if !auth.Authorizes(vault) {
		return bounty.ErrVaultLocked
	}
	return t.move(vault, to, amount, true)
}

func (t *sqliteTx) Balance(_ context.Context, addr bounty.Address) (uint64, error) {
	row, _, err := t.account(addr)
	return uint64(row.Balance), err
}

func (t *sqliteTx) AppendEvent(_ context.Context, evt bounty.Event) (uint64, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return 0, err
	}
	row := eventRow{BountyID: int64(evt.BountyID), Kind: string(evt.Kind), Payload: payload}
	if err := t.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.Seq, nil
}

// GetRegistry returns the registry singleton.
func (s *SQLiteStore) GetRegistry(ctx context.Context) (bounty.Registry, error) {
	return loadRegistry(s.db.WithContext(ctx))
}

// GetBounty loads the record stored at the derived address of id.
func (s *SQLiteStore) GetBounty(ctx context.Context, id uint64) (bounty.Bounty, error) {
	addr := bounty.BountyAddress(id)
	return firstBounty(s.db.WithContext(ctx).Where("address = ?", addr[:]))
}

// FindByTaskHash returns the oldest bounty with the given task hash.
func (s *SQLiteStore) FindByTaskHash(ctx context.Context, hash bounty.Hash) (bounty.Bounty, error) {
	return firstBounty(s.db.WithContext(ctx).Where("task_hash = ?", hash[:]))
}

// ListBounties returns a page of matching bounties ordered by id.
func (s *SQLiteStore) ListBounties(ctx context.Context, f Filter) ([]bounty.Bounty, int, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, 0, err
	}
	matching := func(q *gorm.DB) *gorm.DB {
		if f.Sponsor != nil {
			q = q.Where("sponsor = ?", f.Sponsor[:])
		}
		if f.Worker != nil {
			q = q.Where("worker = ?", f.Worker[:])
		}
		if f.Status != nil {
			q = q.Where("status = ?", int16(*f.Status))
		}
		return q
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&recordRow{}).Scopes(matching).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []recordRow
	err = s.db.WithContext(ctx).Scopes(matching).Order("bounty_id").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]bounty.Bounty, 0, len(rows))
	for _, row := range rows {
		b, err := bounty.DecodeBounty(row.Record)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, int(total), nil
}

// Balance returns the native balance held at addr.
func (s *SQLiteStore) Balance(ctx context.Context, addr bounty.Address) (uint64, error) {
	t := &sqliteTx{db: s.db.WithContext(ctx)}
	return t.Balance(ctx, addr)
}

// ListEvents returns events in append order.
func (s *SQLiteStore) ListEvents(ctx context.Context, f bounty.EventFilter) ([]bounty.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := s.db.WithContext(ctx).Where("seq > ?", f.AfterSeq)
	if f.BountyID != 0 {
		q = q.Where("bounty_id = ?", int64(f.BountyID))
	}
	var rows []eventRow
	if err := q.Order("seq").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]bounty.Event, 0, len(rows))
	for _, row := range rows {
		var evt bounty.Event
		if err := json.Unmarshal(row.Payload, &evt); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", row.Seq, err)
		}
		evt.Seq = row.Seq
		out = append(out, evt)
	}
	return out, nil
}

// Fund credits amount to a non-vault account and returns the new balance.
func (s *SQLiteStore) Fund(ctx context.Context, addr bounty.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	var next uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t := &sqliteTx{db: tx}
		row, _, err := t.account(addr)
		if err != nil {
			return err
		}
		if row.IsVault {
			return ErrFundVault
		}
		var ok bool
		next, ok = bounty.CheckedAdd(uint64(row.Balance), amount)
		if !ok {
			return bounty.ErrBalanceOverflow
		}
		return t.setBalance(addr, next)
	})
	return next, err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
