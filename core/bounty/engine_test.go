package bounty_test

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyl19970726/Code3/core/bounty"
	store "github.com/cyl19970726/Code3/storage/bounty"
)

var (
	authority = addr(0xA0)
	sponsor   = addr(0x51)
	worker    = addr(0x57)
	stranger  = addr(0x99)
)

func addr(b byte) bounty.Address {
	var a bounty.Address
	for i := range a {
		a[i] = b
	}
	return a
}

type fixture struct {
	ctx    context.Context
	store  *store.MemoryStore
	engine *bounty.Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: store.NewMemoryStore(),
		now:   time.Unix(1_700_000_000, 0),
	}
	f.engine = bounty.NewEngine(f.store, bounty.WithClock(bounty.ClockFunc(func() time.Time { return f.now })))
	_, err := f.engine.Initialize(f.ctx, authority)
	require.NoError(t, err)
	_, err = f.store.Fund(f.ctx, sponsor, 1_000_000)
	require.NoError(t, err)
	return f
}

func (f *fixture) create(t *testing.T, amount uint64) bounty.Bounty {
	t.Helper()
	rec, err := f.engine.CreateBounty(f.ctx, sponsor, bounty.CreateParams{
		TaskID:   "T1",
		TaskURL:  "https://x",
		TaskHash: bounty.TaskHash([]byte("task one")),
		Amount:   amount,
	})
	require.NoError(t, err)
	return rec.Bounty
}

func (f *fixture) balance(t *testing.T, a bounty.Address) uint64 {
	t.Helper()
	bal, err := f.store.Balance(f.ctx, a)
	require.NoError(t, err)
	return bal
}

func (f *fixture) bounty(t *testing.T, id uint64) bounty.Bounty {
	t.Helper()
	b, err := f.store.GetBounty(f.ctx, id)
	require.NoError(t, err)
	return b
}

// advance moves a fresh bounty forward to the given status.
func (f *fixture) advance(t *testing.T, to bounty.Status) bounty.Bounty {
	t.Helper()
	b := f.create(t, 1000)
	steps := []struct {
		status bounty.Status
		run    func() (bounty.Receipt, error)
	}{
		{bounty.StatusAccepted, func() (bounty.Receipt, error) { return f.engine.AcceptBounty(f.ctx, sponsor, b.BountyID, worker) }},
		{bounty.StatusSubmitted, func() (bounty.Receipt, error) {
			return f.engine.SubmitBounty(f.ctx, worker, b.BountyID, "https://sub")
		}},
		{bounty.StatusConfirmed, func() (bounty.Receipt, error) { return f.engine.ConfirmBounty(f.ctx, sponsor, b.BountyID) }},
		{bounty.StatusClaimed, func() (bounty.Receipt, error) { return f.engine.ClaimBounty(f.ctx, worker, b.BountyID) }},
	}
	if to == bounty.StatusCancelled {
		_, err := f.engine.CancelBounty(f.ctx, sponsor, b.BountyID)
		require.NoError(t, err)
		return f.bounty(t, b.BountyID)
	}
	for _, step := range steps {
		if b.Status == to {
			break
		}
		rec, err := step.run()
		require.NoError(t, err)
		b = rec.Bounty
		require.Equal(t, step.status, b.Status)
	}
	return b
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	hash := bounty.TaskHash([]byte("task one"))

	rec, err := f.engine.CreateBounty(f.ctx, sponsor, bounty.CreateParams{
		TaskID: "T1", TaskURL: "https://x", TaskHash: hash, Amount: 1000,
	})
	require.NoError(t, err)
	b := rec.Bounty
	assert.Equal(t, uint64(1), b.BountyID)
	assert.Equal(t, bounty.StatusOpen, b.Status)
	assert.Equal(t, bounty.NullAddress, b.Worker)
	assert.Equal(t, bounty.NativeAsset, b.Asset)
	assert.Equal(t, f.now.Unix(), b.CreatedAt)
	assert.Equal(t, uint64(1000), f.balance(t, bounty.VaultAddress(1)))
	assert.Equal(t, uint64(999_000), f.balance(t, sponsor))

	reg, err := f.store.GetRegistry(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reg.NextBountyID)

	f.now = f.now.Add(time.Minute)
	rec, err = f.engine.AcceptBounty(f.ctx, sponsor, 1, worker)
	require.NoError(t, err)
	assert.Equal(t, bounty.StatusAccepted, rec.Bounty.Status)
	assert.Equal(t, worker, rec.Bounty.Worker)
	assert.Equal(t, f.now.Unix(), rec.Bounty.AcceptedAt)

	rec, err = f.engine.SubmitBounty(f.ctx, worker, 1, "https://sub")
	require.NoError(t, err)
	assert.Equal(t, bounty.StatusSubmitted, rec.Bounty.Status)
	assert.Equal(t, "https://sub", rec.Bounty.SubmissionURL)

	rec, err = f.engine.ConfirmBounty(f.ctx, sponsor, 1)
	require.NoError(t, err)
	assert.Equal(t, bounty.StatusConfirmed, rec.Bounty.Status)

	workerBefore := f.balance(t, worker)
	rec, err = f.engine.ClaimBounty(f.ctx, worker, 1)
	require.NoError(t, err)
	assert.Equal(t, bounty.StatusClaimed, rec.Bounty.Status)
	assert.Equal(t, f.now.Unix(), rec.Bounty.ClaimedAt)
	assert.Equal(t, uint64(0), f.balance(t, bounty.VaultAddress(1)))
	assert.Equal(t, workerBefore+1000, f.balance(t, worker))

	events, err := f.store.ListEvents(f.ctx, bounty.EventFilter{BountyID: 1})
	require.NoError(t, err)
	kinds := make([]bounty.EventKind, 0, len(events))
	for _, evt := range events {
		kinds = append(kinds, evt.Kind)
	}
	assert.Equal(t, []bounty.EventKind{
		bounty.EventCreated, bounty.EventAccepted, bounty.EventSubmitted, bounty.EventConfirmed, bounty.EventClaimed,
	}, kinds)
	require.NotNil(t, events[0].TaskHash)
	assert.Equal(t, hash, *events[0].TaskHash)
	assert.Equal(t, uint64(1000), events[4].Amount)
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name    string
		params  bounty.CreateParams
		wantErr error
	}{
		{"task id at cap", bounty.CreateParams{TaskID: strings.Repeat("a", 200), Amount: 1}, nil},
		{"task id over cap", bounty.CreateParams{TaskID: strings.Repeat("a", 201), Amount: 1}, bounty.ErrTaskIDTooLong},
		{"task url at cap", bounty.CreateParams{TaskURL: strings.Repeat("u", 500), Amount: 1}, nil},
		{"task url over cap", bounty.CreateParams{TaskURL: strings.Repeat("u", 501), Amount: 1}, bounty.ErrTaskURLTooLong},
		{"zero amount", bounty.CreateParams{TaskID: "T", Amount: 0}, bounty.ErrInvalidAmount},
		{"amount of one", bounty.CreateParams{TaskID: "T", Amount: 1}, nil},
		{"task id checked before amount", bounty.CreateParams{TaskID: strings.Repeat("a", 201), Amount: 0}, bounty.ErrTaskIDTooLong},
		{"more than sponsor holds", bounty.CreateParams{TaskID: "T", Amount: 2_000_000}, bounty.ErrInsufficientFunds},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.CreateBounty(f.ctx, sponsor, tc.params)
			reg, regErr := f.store.GetRegistry(f.ctx)
			require.NoError(t, regErr)

			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, uint64(2), reg.NextBountyID)
				assert.Equal(t, tc.params.Amount, f.balance(t, bounty.VaultAddress(1)))
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, uint64(1), reg.NextBountyID)
			assert.Equal(t, uint64(1_000_000), f.balance(t, sponsor))
			_, getErr := f.store.GetBounty(f.ctx, 1)
			assert.ErrorIs(t, getErr, bounty.ErrBountyNotFound)
		})
	}
}

func TestIDsIncreaseByOne(t *testing.T) {
	f := newFixture(t)
	for want := uint64(1); want <= 5; want++ {
		b := f.create(t, 10)
		assert.Equal(t, want, b.BountyID)
		assert.Equal(t, uint64(10), f.balance(t, bounty.VaultAddress(want)))
	}
}

func TestWrongStatusIsRejected(t *testing.T) {
	type op struct {
		name string
		from bounty.Status
		run  func(f *fixture, id uint64) error
	}
	ops := []op{
		{"accept", bounty.StatusOpen, func(f *fixture, id uint64) error {
			_, err := f.engine.AcceptBounty(f.ctx, sponsor, id, worker)
			return err
		}},
		{"submit", bounty.StatusAccepted, func(f *fixture, id uint64) error {
			_, err := f.engine.SubmitBounty(f.ctx, worker, id, "https://sub")
			return err
		}},
		{"confirm", bounty.StatusSubmitted, func(f *fixture, id uint64) error {
			_, err := f.engine.ConfirmBounty(f.ctx, sponsor, id)
			return err
		}},
		{"claim", bounty.StatusConfirmed, func(f *fixture, id uint64) error {
			_, err := f.engine.ClaimBounty(f.ctx, worker, id)
			return err
		}},
		{"cancel", bounty.StatusOpen, func(f *fixture, id uint64) error {
			_, err := f.engine.CancelBounty(f.ctx, sponsor, id)
			return err
		}},
	}
	statuses := []bounty.Status{
		bounty.StatusOpen, bounty.StatusAccepted, bounty.StatusSubmitted,
		bounty.StatusConfirmed, bounty.StatusClaimed, bounty.StatusCancelled,
	}

	for _, o := range ops {
		for _, st := range statuses {
			if st == o.from {
				continue
			}
			t.Run(o.name+" from "+st.String(), func(t *testing.T) {
				f := newFixture(t)
				before := f.advance(t, st)
				vaultBefore := f.balance(t, bounty.VaultAddress(before.BountyID))

				err := o.run(f, before.BountyID)
				require.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
				assert.Equal(t, bounty.CodeInvalidBountyStatus, bounty.CodeOf(err))
				assert.Equal(t, before, f.bounty(t, before.BountyID))
				assert.Equal(t, vaultBefore, f.balance(t, bounty.VaultAddress(before.BountyID)))
			})
		}
	}
}

func TestWrongCallerIsRejected(t *testing.T) {
	cases := []struct {
		name    string
		from    bounty.Status
		run     func(f *fixture, id uint64) error
		wantErr error
	}{
		{"accept by worker", bounty.StatusOpen, func(f *fixture, id uint64) error {
			_, err := f.engine.AcceptBounty(f.ctx, worker, id, worker)
			return err
		}, bounty.ErrUnauthorizedSponsor},
		{"submit by sponsor", bounty.StatusAccepted, func(f *fixture, id uint64) error {
			_, err := f.engine.SubmitBounty(f.ctx, sponsor, id, "https://sub")
			return err
		}, bounty.ErrUnauthorizedWorker},
		{"confirm by worker", bounty.StatusSubmitted, func(f *fixture, id uint64) error {
			_, err := f.engine.ConfirmBounty(f.ctx, worker, id)
			return err
		}, bounty.ErrUnauthorizedSponsor},
		{"claim by stranger", bounty.StatusConfirmed, func(f *fixture, id uint64) error {
			_, err := f.engine.ClaimBounty(f.ctx, stranger, id)
			return err
		}, bounty.ErrUnauthorizedWorker},
		{"claim by sponsor", bounty.StatusConfirmed, func(f *fixture, id uint64) error {
			_, err := f.engine.ClaimBounty(f.ctx, sponsor, id)
			return err
		}, bounty.ErrUnauthorizedWorker},
		{"cancel by stranger", bounty.StatusOpen, func(f *fixture, id uint64) error {
			_, err := f.engine.CancelBounty(f.ctx, stranger, id)
			return err
		}, bounty.ErrUnauthorizedSponsor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.advance(t, tc.from)
			vaultBefore := f.balance(t, bounty.VaultAddress(before.BountyID))

			err := tc.run(f, before.BountyID)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, f.bounty(t, before.BountyID))
			assert.Equal(t, vaultBefore, f.balance(t, bounty.VaultAddress(before.BountyID)))
		})
	}
}

func TestAcceptByNonSponsorKeepsOpen(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 1000)

	_, err := f.engine.AcceptBounty(f.ctx, stranger, b.BountyID, worker)
	require.ErrorIs(t, err, bounty.ErrUnauthorizedSponsor)

	got := f.bounty(t, b.BountyID)
	assert.Equal(t, bounty.StatusOpen, got.Status)
	assert.Equal(t, bounty.NullAddress, got.Worker)
}

func TestStatusCheckedBeforeCaller(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 1000)

	_, err := f.engine.SubmitBounty(f.ctx, stranger, b.BountyID, "https://sub")
	require.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
}

func TestSubmissionURLCap(t *testing.T) {
	f := newFixture(t)
	b := f.advance(t, bounty.StatusAccepted)

	_, err := f.engine.SubmitBounty(f.ctx, worker, b.BountyID, strings.Repeat("s", 501))
	require.ErrorIs(t, err, bounty.ErrSubmissionURLTooLong)
	assert.Equal(t, bounty.StatusAccepted, f.bounty(t, b.BountyID).Status)

	rec, err := f.engine.SubmitBounty(f.ctx, worker, b.BountyID, strings.Repeat("s", 500))
	require.NoError(t, err)
	assert.Len(t, rec.Bounty.SubmissionURL, 500)
}

func TestClaimedIsTerminal(t *testing.T) {
	f := newFixture(t)
	b := f.advance(t, bounty.StatusClaimed)
	assert.Equal(t, uint64(0), f.balance(t, bounty.VaultAddress(b.BountyID)))

	_, err := f.engine.ClaimBounty(f.ctx, worker, b.BountyID)
	assert.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
	_, err = f.engine.CancelBounty(f.ctx, sponsor, b.BountyID)
	assert.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
	_, err = f.engine.AcceptBounty(f.ctx, sponsor, b.BountyID, stranger)
	assert.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
	assert.Equal(t, uint64(1000), f.balance(t, worker))
}

func TestCancelRefundsSponsor(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 2500)
	assert.Equal(t, uint64(997_500), f.balance(t, sponsor))

	rec, err := f.engine.CancelBounty(f.ctx, sponsor, b.BountyID)
	require.NoError(t, err)
	assert.Equal(t, bounty.StatusCancelled, rec.Bounty.Status)
	assert.Equal(t, f.now.Unix(), rec.Bounty.CancelledAt)
	assert.Equal(t, bounty.EventCancelled, rec.Event.Kind)
	assert.Equal(t, uint64(0), f.balance(t, bounty.VaultAddress(b.BountyID)))
	assert.Equal(t, uint64(1_000_000), f.balance(t, sponsor))
}

func TestCancelAfterAcceptIsRejected(t *testing.T) {
	f := newFixture(t)
	b := f.advance(t, bounty.StatusAccepted)

	_, err := f.engine.CancelBounty(f.ctx, sponsor, b.BountyID)
	require.ErrorIs(t, err, bounty.ErrInvalidBountyStatus)
	assert.Equal(t, uint64(1000), f.balance(t, bounty.VaultAddress(b.BountyID)))
}

func TestCounterOverflow(t *testing.T) {
	f := newFixture(t)
	err := f.store.Update(f.ctx, func(tx bounty.Tx) error {
		return tx.SaveRegistry(f.ctx, bounty.Registry{Authority: authority, NextBountyID: math.MaxUint64, Nonce: bounty.AddressVersion})
	})
	require.NoError(t, err)

	_, err = f.engine.CreateBounty(f.ctx, sponsor, bounty.CreateParams{TaskID: "T", Amount: 5})
	require.ErrorIs(t, err, bounty.ErrArithmeticOverflow)

	reg, err := f.store.GetRegistry(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), reg.NextBountyID)
	_, err = f.store.GetBounty(f.ctx, math.MaxUint64)
	assert.ErrorIs(t, err, bounty.ErrBountyNotFound)
	assert.Equal(t, uint64(1_000_000), f.balance(t, sponsor))
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := bounty.NewEngine(s)

	_, err := e.CreateBounty(ctx, sponsor, bounty.CreateParams{TaskID: "T", Amount: 1})
	require.ErrorIs(t, err, bounty.ErrNotInitialized)

	reg, err := e.Initialize(ctx, authority)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), reg.NextBountyID)
	assert.Equal(t, authority, reg.Authority)

	_, err = e.Initialize(ctx, stranger)
	require.ErrorIs(t, err, bounty.ErrAlreadyInitialized)
	got, err := s.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, authority, got.Authority)
}

func TestUnknownBounty(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AcceptBounty(f.ctx, sponsor, 42, worker)
	require.ErrorIs(t, err, bounty.ErrBountyNotFound)
}

func TestVaultCannotBeDebitedDirectly(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 1000)
	vault := bounty.VaultAddress(b.BountyID)

	err := f.store.Update(f.ctx, func(tx bounty.Tx) error {
		return tx.Transfer(f.ctx, vault, stranger, 1000)
	})
	require.ErrorIs(t, err, bounty.ErrVaultLocked)

	err = f.store.Update(f.ctx, func(tx bounty.Tx) error {
		return tx.Release(f.ctx, bounty.Custody{}, vault, stranger, 1000)
	})
	require.ErrorIs(t, err, bounty.ErrVaultLocked)

	assert.Equal(t, uint64(1000), f.balance(t, vault))
	assert.Equal(t, uint64(0), f.balance(t, stranger))
}
