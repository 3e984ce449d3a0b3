package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_vault/internal/events"
	"github.com/congo-pay/custody_vault/internal/store/pgtest"
)

func newPostgres(t *testing.T, initialized bool) *Postgres {
	t.Helper()
	db := pgtest.Pool(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	p := NewPostgres(db)
	if initialized {
		require.NoError(t, p.Init(ctx, owner))
	}
	return p
}

func TestPostgresRequiresInit(t *testing.T) {
	p := newPostgres(t, false)
	err := p.Atomically(context.Background(), func(context.Context, Tx) error { return nil })
	require.ErrorIs(t, err, ErrNotInitialized)

	err = p.View(context.Background(), func(ctx context.Context, r Reader) error {
		_, err := r.Owner(ctx)
		return err
	})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestPostgresInitKeepsFirstOwner(t *testing.T) {
	p := newPostgres(t, true)
	require.NoError(t, p.Init(context.Background(), alice))

	err := p.View(context.Background(), func(ctx context.Context, r Reader) error {
		got, err := r.Owner(ctx)
		require.Equal(t, owner, got)
		return err
	})
	require.NoError(t, err)
}

func TestPostgresFailedUnitIsDiscarded(t *testing.T) {
	p := newPostgres(t, true)
	ctx := context.Background()
	boom := errors.New("boom")

	err := p.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetPaused(ctx, true))
		require.NoError(t, tx.SetWhitelisted(ctx, token, true))
		require.NoError(t, tx.SetBalance(ctx, alice, token, uint256.NewInt(7)))
		_, err := tx.AppendEvent(ctx, events.Paused(owner))
		require.NoError(t, err)

		paused, err := tx.Paused(ctx)
		require.NoError(t, err)
		require.True(t, paused)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, p.View(ctx, func(ctx context.Context, r Reader) error {
		paused, _ := r.Paused(ctx)
		require.False(t, paused)
		ok, _ := r.IsWhitelisted(ctx, token)
		require.False(t, ok)
		bal, _ := r.Balance(ctx, alice, token)
		require.True(t, bal.IsZero())
		return nil
	}))
	list, err := p.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPostgresBalanceKeepsFull256Bits(t *testing.T) {
	p := newPostgres(t, true)
	ctx := context.Background()
	top := new(uint256.Int).SetAllOne()

	require.NoError(t, p.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SetBalance(ctx, alice, token, top); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, events.Deposited(alice, token, top))
		return err
	}))

	require.NoError(t, p.View(ctx, func(ctx context.Context, r Reader) error {
		bal, err := r.Balance(ctx, alice, token)
		require.NoError(t, err)
		require.Equal(t, top, bal)
		return nil
	}))
	list, err := p.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, top, list[0].Amount)
	require.Equal(t, events.KindDeposited, list[0].Kind)
}

func TestPostgresEventsPageAcrossRolledBackSeq(t *testing.T) {
	p := newPostgres(t, true)
	ctx := context.Background()

	appendOne := func(fail bool) {
		err := p.Atomically(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.AppendEvent(ctx, events.WhitelistUpdated(token, true)); err != nil {
				return err
			}
			if fail {
				return errors.New("rolled back")
			}
			return nil
		})
		require.Equal(t, fail, err != nil)
	}
	appendOne(false)
	appendOne(true)
	appendOne(false)
	appendOne(false)

	all, err := p.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// The rolled back unit consumed seq 2.
	require.EqualValues(t, 1, all[0].Seq)
	require.EqualValues(t, 3, all[1].Seq)
	require.EqualValues(t, 4, all[2].Seq)

	page, err := p.Events(ctx, all[0].Seq, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.EqualValues(t, 3, page[0].Seq)

	tail, err := p.Events(ctx, all[2].Seq, 10)
	require.NoError(t, err)
	require.Empty(t, tail)
}

func TestPostgresConcurrentUnitsSerialize(t *testing.T) {
	p := newPostgres(t, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Atomically(ctx, func(ctx context.Context, tx Tx) error {
				bal, err := tx.Balance(ctx, alice, token)
				if err != nil {
					return err
				}
				return tx.SetBalance(ctx, alice, token, new(uint256.Int).AddUint64(bal, 1))
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, p.View(ctx, func(ctx context.Context, r Reader) error {
		bal, err := r.Balance(ctx, alice, token)
		require.NoError(t, err)
		require.EqualValues(t, 20, bal.Uint64())
		return nil
	}))
}
