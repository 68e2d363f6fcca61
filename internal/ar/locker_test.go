package ar

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func newTestLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, 5*time.Second, wait), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t, 0)
	key := shared.InvoiceLockKey(uuid.New())

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))
	require.Equal(t, 5*time.Second, mr.TTL(key))

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(key))

	release, err = locker.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t, 0)
	key := "backoffice:invoice:test:lock"

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	// the lock expired and someone else took it
	mr.FastForward(10 * time.Second)
	require.NoError(t, mr.Set(key, "other-token"))

	require.NoError(t, release(ctx))
	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "other-token", got)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestLocker(t, time.Second)
	key := "backoffice:invoice:wait:lock"

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		second, err := locker.Acquire(ctx, key)
		if err == nil {
			err = second(ctx)
		}
		done <- err
	}()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, release(ctx))
	require.NoError(t, <-done)
}

func TestServiceSerialisesPaymentsThroughLocker(t *testing.T) {
	f := newServiceFixture(t)
	locker, mr := newTestLocker(t, 2*time.Second)
	f.svc.locker = locker
	inv := f.create(t)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, _, err := f.svc.RecordPayment(context.Background(), inv.ID, PaymentRequest{Amount: dec("10")}, "")
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}

	stored := f.repo.stored(t, inv.ID)
	require.Len(t, stored.Payments, workers)
	require.True(t, stored.PaidAmount.Equal(dec("80")))
	require.Equal(t, invoicing.StatusPartial, stored.Status)
	require.NoError(t, invoicing.VerifyLedger(stored))
	require.False(t, mr.Exists(shared.InvoiceLockKey(inv.ID)))
}
