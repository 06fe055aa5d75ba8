package bounty

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/cyl19970726/Code3/core/bounty"
)

// MemoryStore holds ledger state in maps guarded by a single RWMutex.
// Records are kept in their encoded form, keyed by derived address.
type MemoryStore struct {
	mu       sync.RWMutex
	registry []byte
	records  map[bounty.Address][]byte
	balances map[bounty.Address]uint64
	vaults   map[bounty.Address]struct{}
	events   []bounty.Event
	seq      uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[bounty.Address][]byte),
		balances: make(map[bounty.Address]uint64),
		vaults:   make(map[bounty.Address]struct{}),
	}
}

// Update runs fn against a staged view and applies the staged writes only when
// fn succeeds. Units are serialized by the write lock.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx bounty.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		records:  make(map[bounty.Address][]byte),
		balances: make(map[bounty.Address]uint64),
		vaults:   make(map[bounty.Address]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s        *MemoryStore
	registry []byte
	records  map[bounty.Address][]byte
	balances map[bounty.Address]uint64
	vaults   map[bounty.Address]struct{}
	events   []bounty.Event
}

func (t *memTx) commit() {
	s := t.s
	if t.registry != nil {
		s.registry = t.registry
	}
	for k, v := range t.records {
		s.records[k] = v
	}
	for k, v := range t.balances {
		s.balances[k] = v
	}
	for k := range t.vaults {
		s.vaults[k] = struct{}{}
	}
	for _, evt := range t.events {
		s.seq = evt.Seq
		s.events = append(s.events, evt)
	}
}

func (t *memTx) registryBytes() []byte {
	if t.registry != nil {
		return t.registry
	}
	return t.s.registry
}

func (t *memTx) Registry(_ context.Context) (bounty.Registry, error) {
	raw := t.registryBytes()
	if raw == nil {
		return bounty.Registry{}, bounty.ErrNotInitialized
	}
	return bounty.DecodeRegistry(raw)
}

func (t *memTx) CreateRegistry(_ context.Context, r bounty.Registry) error {
	if t.registryBytes() != nil {
		return bounty.ErrAlreadyInitialized
	}
	t.registry = bounty.EncodeRegistry(r)
	return nil
}

func (t *memTx) SaveRegistry(_ context.Context, r bounty.Registry) error {
	if t.registryBytes() == nil {
		return bounty.ErrNotInitialized
	}
	t.registry = bounty.EncodeRegistry(r)
	return nil
}

func (t *memTx) record(addr bounty.Address) ([]byte, bool) {
	if raw, ok := t.records[addr]; ok {
		return raw, true
	}
	raw, ok := t.s.records[addr]
	return raw, ok
}

func (t *memTx) Bounty(_ context.Context, addr bounty.Address) (bounty.Bounty, error) {
	raw, ok := t.record(addr)
	if !ok {
		return bounty.Bounty{}, bounty.ErrBountyNotFound
	}
	return bounty.DecodeBounty(raw)
}

func (t *memTx) CreateBounty(_ context.Context, addr bounty.Address, b bounty.Bounty) error {
	if _, ok := t.record(addr); ok {
		return bounty.ErrAccountExists
	}
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	t.records[addr] = raw
	return nil
}

func (t *memTx) SaveBounty(_ context.Context, addr bounty.Address, b bounty.Bounty) error {
	if _, ok := t.record(addr); !ok {
		return bounty.ErrBountyNotFound
	}
	raw, err := bounty.EncodeBounty(b)
	if err != nil {
		return err
	}
	t.records[addr] = raw
	return nil
}

func (t *memTx) isVault(addr bounty.Address) bool {
	if _, ok := t.vaults[addr]; ok {
		return true
	}
	_, ok := t.s.vaults[addr]
	return ok
}

func (t *memTx) balance(addr bounty.Address) uint64 {
	if v, ok := t.balances[addr]; ok {
		return v
	}
	return t.s.balances[addr]
}

func (t *memTx) OpenVault(_ context.Context, vault bounty.Address) error {
	if t.isVault(vault) {
		return bounty.ErrAccountExists
	}
	t.vaults[vault] = struct{}{}
	t.balances[vault] = 0
	return nil
}

func (t *memTx) move(from, to bounty.Address, amount uint64) error {
	have := t.balance(from)
	if have < amount {
		return bounty.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	credited, ok := bounty.CheckedAdd(t.balance(to), amount)
	if !ok {
		return bounty.ErrBalanceOverflow
	}
	t.balances[from] = have - amount
	t.balances[to] = credited
	return nil
}

func (t *memTx) Transfer(_ context.Context, from, to bounty.Address, amount uint64) error {
	if t.isVault(from) {
		return bounty.ErrVaultLocked
	}
	return t.move(from, to, amount)
}

func (t *memTx) Release(_ context.Context, auth bounty.Custody, vault, to bounty.Address, amount uint64) error {
	if !auth.Authorizes(vault) || !t.isVault(vault) {
		return bounty.ErrVaultLocked
	}
	return t.move(vault, to, amount)
}

func (t *memTx) Balance(_ context.Context, addr bounty.Address) (uint64, error) {
	return t.balance(addr), nil
}

// AppendEvent numbers evt now; the write lock keeps the number free until commit.
func (t *memTx) AppendEvent(_ context.Context, evt bounty.Event) (uint64, error) {
	evt.Seq = t.s.seq + uint64(len(t.events)) + 1
	t.events = append(t.events, evt)
	return evt.Seq, nil
}

// GetRegistry returns the registry singleton.
func (s *MemoryStore) GetRegistry(_ context.Context) (bounty.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return bounty.Registry{}, bounty.ErrNotInitialized
	}
	return bounty.DecodeRegistry(s.registry)
}

// GetBounty loads the record stored at the derived address of id.
func (s *MemoryStore) GetBounty(_ context.Context, id uint64) (bounty.Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.records[bounty.BountyAddress(id)]
	if !ok {
		return bounty.Bounty{}, bounty.ErrBountyNotFound
	}
	return bounty.DecodeBounty(raw)
}

func (s *MemoryStore) sortedBounties() ([]bounty.Bounty, error) {
	out := make([]bounty.Bounty, 0, len(s.records))
	for _, raw := range s.records {
		b, err := bounty.DecodeBounty(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BountyID < out[j].BountyID })
	return out, nil
}

// FindByTaskHash returns the oldest bounty with the given task hash.
func (s *MemoryStore) FindByTaskHash(_ context.Context, hash bounty.Hash) (bounty.Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, err := s.sortedBounties()
	if err != nil {
		return bounty.Bounty{}, err
	}
	for _, b := range all {
		if bytes.Equal(b.TaskHash[:], hash[:]) {
			return b, nil
		}
	}
	return bounty.Bounty{}, bounty.ErrBountyNotFound
}

// ListBounties returns a page of matching bounties ordered by id.
func (s *MemoryStore) ListBounties(_ context.Context, f Filter) ([]bounty.Bounty, int, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, err := s.sortedBounties()
	if err != nil {
		return nil, 0, err
	}
	matched := make([]bounty.Bounty, 0, len(all))
	for _, b := range all {
		if f.Match(b) {
			matched = append(matched, b)
		}
	}
	total := len(matched)
	if f.Offset >= total {
		return []bounty.Bounty{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}

// Balance returns the native balance held at addr.
func (s *MemoryStore) Balance(_ context.Context, addr bounty.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[addr], nil
}

// ListEvents returns events in append order.
func (s *MemoryStore) ListEvents(_ context.Context, f bounty.EventFilter) ([]bounty.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := make([]bounty.Event, 0)
	for _, evt := range s.events {
		if !f.Match(evt) {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Fund credits amount to a non-vault account and returns the new balance.
func (s *MemoryStore) Fund(_ context.Context, addr bounty.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[addr]; ok {
		return 0, ErrFundVault
	}
	next, ok := bounty.CheckedAdd(s.balances[addr], amount)
	if !ok {
		return 0, bounty.ErrBalanceOverflow
	}
	s.balances[addr] = next
	return next, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
