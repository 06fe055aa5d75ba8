package bounty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyl19970726/Code3/core/bounty"
)

// PGStore persists ledger state in Postgres. Unsigned amounts and ids are
// stored as the bit pattern of a BIGINT; all arithmetic happens in Go.
type PGStore struct {
	pool *pgxpool.Pool
}

// ConnectTimeout bounds the connect retry loop in NewPGStore.
var ConnectTimeout = 30 * time.Second

// NewPGStore connects, retrying until the database answers, and initializes schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = ConnectTimeout
	ping := func() error {
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("postgres not ready, retrying", "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS bounty_registry (
  address BYTEA PRIMARY KEY,
  record BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS bounty_records (
  address BYTEA PRIMARY KEY,
  bounty_id BIGINT NOT NULL UNIQUE,
  sponsor BYTEA NOT NULL,
  worker BYTEA NOT NULL,
  status SMALLINT NOT NULL,
  task_hash BYTEA NOT NULL,
  record BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS bounty_accounts (
  address BYTEA PRIMARY KEY,
  balance BIGINT NOT NULL DEFAULT 0,
  is_vault BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS bounty_events (
  seq BIGSERIAL PRIMARY KEY,
  bounty_id BIGINT NOT NULL,
  kind TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_bounty_records_sponsor ON bounty_records(sponsor);
CREATE INDEX IF NOT EXISTS idx_bounty_records_worker ON bounty_records(worker);
CREATE INDEX IF NOT EXISTS idx_bounty_records_task_hash ON bounty_records(task_hash);
CREATE INDEX IF NOT EXISTS idx_bounty_records_status ON bounty_records(status);
CREATE INDEX IF NOT EXISTS idx_bounty_events_bounty ON bounty_events(bounty_id, seq);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Update runs fn inside one Postgres transaction. Rows are locked with
// SELECT ... FOR UPDATE as fn touches them.
func (s *PGStore) Update(ctx context.Context, fn func(tx bounty.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Registry(ctx context.Context) (bounty.Registry, error) {
	addr := bounty.RegistryAddress()
	var raw []byte
	err := t.tx.QueryRow(ctx, `SELECT record FROM bounty_registry WHERE address=$1 FOR UPDATE`, addr[:]).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bounty.Registry{}, bounty.ErrNotInitialized
	}
	if err != nil {
		return bounty.Registry{}, err
	}
	return bounty.DecodeRegistry(raw)
}

func (t *pgTx) CreateRegistry(ctx context.Context, r bounty.Registry) error {
	addr := bounty.RegistryAddress()
	tag, err := t.tx.Exec(ctx, `INSERT INTO bounty_registry (address, record) VALUES ($1,$2) ON CONFLICT (address) DO NOTHING`,
		addr[:], bounty.EncodeRegistry(r))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bounty.ErrAlreadyInitialized
	}
	return nil
}

func (t *pgTx) SaveRegistry(ctx context.Context, r bounty.Registry) error {
	addr := bounty.RegistryAddress()
	tag, err := t.tx.Exec(ctx, `UPDATE bounty_registry SET record=$2 WHERE address=$1`, addr[:], bounty.EncodeRegistry(r))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bounty.ErrNotInitialized
	}
	return nil
}

func (t *pgTx) Bounty(ctx context.Context, addr bounty.Address) (bounty.Bounty, error) {
	var raw []byte
	err := t.tx.QueryRow(ctx, `SELECT record FROM bounty_records WHERE address=$1 FOR UPDATE`, addr[:]).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bounty.Bounty{}, bounty.ErrBountyNotFound
	}
	if err != nil {
		return bounty.Bounty{}, err
	}
	return bounty.DecodeBounty(raw)
}

func (t *pgTx) CreateBounty(ctx context.Context, addr bounty.Address, b bounty.Bounty) error {
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
INSERT INTO bounty_records (address, bounty_id, sponsor, worker, status, task_hash, record)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT DO NOTHING
`, addr[:], int64(b.BountyID), b.Sponsor[:], b.Worker[:], int16(b.Status), b.TaskHash[:], raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bounty.ErrAccountExists
	}
	return nil
}

func (t *pgTx) SaveBounty(ctx context.Context, addr bounty.Address, b bounty.Bounty) error {
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
UPDATE bounty_records SET worker=$2, status=$3, record=$4, updated_at=now() WHERE address=$1
`, addr[:], b.Worker[:], int16(b.Status), raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bounty.ErrBountyNotFound
	}
	return nil
}

type pgAccount struct {
	balance uint64
	vault   bool
	exists  bool
}

func (t *pgTx) lockAccount(ctx context.Context, addr bounty.Address) (pgAccount, error) {
	var bal int64
	var acct pgAccount
	err := t.tx.QueryRow(ctx, `SELECT balance, is_vault FROM bounty_accounts WHERE address=$1 FOR UPDATE`, addr[:]).Scan(&bal, &acct.vault)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgAccount{}, nil
	}
	if err != nil {
		return pgAccount{}, err
	}
	acct.balance = uint64(bal)
	acct.exists = true
	return acct, nil
}

func (t *pgTx) setBalance(ctx context.Context, addr bounty.Address, balance uint64) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO bounty_accounts (address, balance, is_vault) VALUES ($1,$2,FALSE)
ON CONFLICT (address) DO UPDATE SET balance=EXCLUDED.balance
`, addr[:], int64(balance))
	return err
}

func (t *pgTx) OpenVault(ctx context.Context, vault bounty.Address) error {
	tag, err := t.tx.Exec(ctx, `
INSERT INTO bounty_accounts (address, balance, is_vault) VALUES ($1,0,TRUE)
ON CONFLICT (address) DO UPDATE SET balance=0, is_vault=TRUE
WHERE bounty_accounts.is_vault = FALSE
`, vault[:])
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bounty.ErrAccountExists
	}
	return nil
}

// move locks both rows in address order so concurrent units cannot deadlock.
func (t *pgTx) move(ctx context.Context, from, to bounty.Address, amount uint64, allowVault bool) error {
	first, second := from, to
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	a, err := t.lockAccount(ctx, first)
	if err != nil {
		return err
	}
	b, err := t.lockAccount(ctx, second)
	if err != nil {
		return err
	}
	src, dst := a, b
	if first != from {
		src, dst = b, a
	}
	if src.vault != allowVault {
		return bounty.ErrVaultLocked
	}
	if src.balance < amount {
		return bounty.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	credited, ok := bounty.CheckedAdd(dst.balance, amount)
	if !ok {
		return bounty.ErrBalanceOverflow
	}
	if err := t.setBalance(ctx, from, src.balance-amount); err != nil {
		return err
	}
	return t.setBalance(ctx, to, credited)
}

func (t *pgTx) Transfer(ctx context.Context, from, to bounty.Address, amount uint64) error {
	return t.move(ctx, from, to, amount, false)
}

func (t *pgTx) Release(ctx context.Context, auth bounty.Custody, vault, to bounty.Address, amount uint64) error {
	if !auth.Authorizes(vault) {
		return bounty.ErrVaultLocked
	}
	return t.move(ctx, vault, to, amount, true)
}

func (t *pgTx) Balance(ctx context.Context, addr bounty.Address) (uint64, error) {
	acct, err := t.lockAccount(ctx, addr)
	return acct.balance, err
}

func (t *pgTx) AppendEvent(ctx context.Context, evt bounty.Event) (uint64, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return 0, err
	}
	var seq int64
	err = t.tx.QueryRow(ctx, `INSERT INTO bounty_events (bounty_id, kind, payload) VALUES ($1,$2,$3) RETURNING seq`,
		int64(evt.BountyID), string(evt.Kind), string(payload)).Scan(&seq)
	return uint64(seq), err
}

// GetRegistry returns the registry singleton.
func (s *PGStore) GetRegistry(ctx context.Context) (bounty.Registry, error) {
	addr := bounty.RegistryAddress()
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM bounty_registry WHERE address=$1`, addr[:]).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bounty.Registry{}, bounty.ErrNotInitialized
	}
	if err != nil {
		return bounty.Registry{}, err
	}
	return bounty.DecodeRegistry(raw)
}

func (s *PGStore) queryOne(ctx context.Context, query string, args ...any) (bounty.Bounty, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bounty.Bounty{}, bounty.ErrBountyNotFound
	}
	if err != nil {
		return bounty.Bounty{}, err
	}
	return bounty.DecodeBounty(raw)
}

// GetBounty loads the record stored at the derived address of id.
func (s *PGStore) GetBounty(ctx context.Context, id uint64) (bounty.Bounty, error) {
	addr := bounty.BountyAddress(id)
	return s.queryOne(ctx, `SELECT record FROM bounty_records WHERE address=$1`, addr[:])
}

// FindByTaskHash returns the oldest bounty with the given task hash.
func (s *PGStore) FindByTaskHash(ctx context.Context, hash bounty.Hash) (bounty.Bounty, error) {
	return s.queryOne(ctx, `SELECT record FROM bounty_records WHERE task_hash=$1 ORDER BY bounty_id LIMIT 1`, hash[:])
}

// ListBounties returns a page of matching bounties ordered by id.
func (s *PGStore) ListBounties(ctx context.Context, f Filter) ([]bounty.Bounty, int, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var args []any
	if f.Sponsor != nil {
		args = append(args, f.Sponsor[:])
		where = append(where, fmt.Sprintf("sponsor=$%d", len(args)))
	}
	if f.Worker != nil {
		args = append(args, f.Worker[:])
		where = append(where, fmt.Sprintf("worker=$%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, int16(*f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM bounty_records`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT record FROM bounty_records%s ORDER BY bounty_id LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]bounty.Bounty, 0, f.Limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, err
		}
		b, err := bounty.DecodeBounty(raw)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// Balance returns the native balance held at addr.
func (s *PGStore) Balance(ctx context.Context, addr bounty.Address) (uint64, error) {
	var bal int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM bounty_accounts WHERE address=$1`, addr[:]).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return uint64(bal), err
}

// ListEvents returns events in append order.
func (s *PGStore) ListEvents(ctx context.Context, f bounty.EventFilter) ([]bounty.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
SELECT seq, payload FROM bounty_events
WHERE seq > $1 AND ($2 = 0 OR bounty_id = $2)
ORDER BY seq LIMIT $3
`, int64(f.AfterSeq), int64(f.BountyID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]bounty.Event, 0)
	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, err
		}
		var evt bounty.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		evt.Seq = uint64(seq)
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Fund credits amount to a non-vault account and returns the new balance.
func (s *PGStore) Fund(ctx context.Context, addr bounty.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	t := &pgTx{tx: tx}
	acct, err := t.lockAccount(ctx, addr)
	if err != nil {
		return 0, err
	}
	if acct.vault {
		return 0, ErrFundVault
	}
	next, ok := bounty.CheckedAdd(acct.balance, amount)
	if !ok {
		return 0, bounty.ErrBalanceOverflow
	}
	if err := t.setBalance(ctx, addr, next); err != nil {
		return 0, err
	}
	return next, tx.Commit(ctx)
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
