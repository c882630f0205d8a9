package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newReservationEnv() (*ReservationService, *memLedger, *memCache) {
	repo := newMemLedger()
	cache := newMemCache()
	svc := NewReservationService(repo, cache, zerolog.Nop())
	return svc, repo, cache
}

func TestReserve_Success(t *testing.T) {
	svc, repo, _ := newReservationEnv()

	id, err := svc.Reserve(context.Background(), "p1", "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a reservation id")
	}
	if got := repo.reservationStatus(id); got != "active" {
		t.Errorf("expected status active, got %s", got)
	}
}

func TestReserve_IdempotentForSameHolder(t *testing.T) {
	svc, repo, _ := newReservationEnv()
	ctx := context.Background()

	first, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	second, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	if first != second {
		t.Errorf("expected same reservation id, got %s and %s", first, second)
	}
	repo.mu.Lock()
	count := len(repo.reservations)
	repo.mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 reservation record, got %d", count)
	}
}

func TestReserve_AlreadyClaimed(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}

	_, err := svc.Reserve(ctx, "p1", "u2", "Bob", "bob@example.com")
	var claimed *AlreadyClaimedError
	if !errors.As(err, &claimed) {
		t.Fatalf("expected AlreadyClaimedError, got: %v", err)
	}
	if claimed.HolderName != "Alice" {
		t.Errorf("expected holder name Alice, got %s", claimed.HolderName)
	}
}

func TestReserve_AfterRelease(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := svc.Release(ctx, "p1", "u1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if _, err := svc.Reserve(ctx, "p1", "u2", "Bob", "bob@example.com"); err != nil {
		t.Fatalf("reserve after release failed: %v", err)
	}
	active, err := svc.GetActive(ctx, "p1")
	if err != nil {
		t.Fatalf("getActive failed: %v", err)
	}
	if active == nil || active.HolderID != "u2" {
		t.Errorf("expected active claim held by u2, got %+v", active)
	}
}

func TestRelease_NoActiveClaimIsNoop(t *testing.T) {
	svc, _, _ := newReservationEnv()

	if err := svc.Release(context.Background(), "p1", "u1"); err != nil {
		t.Errorf("expected no-op success, got: %v", err)
	}
}

func TestRelease_NotOwner(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := svc.Release(ctx, "p1", "u2"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got: %v", err)
	}
}

func TestGetActive_LazyExpiry(t *testing.T) {
	svc, repo, _ := newReservationEnv()
	ctx := context.Background()

	id, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	active, err := svc.GetActive(ctx, "p1")
	if err != nil {
		t.Fatalf("getActive failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active claim after expiry, got %+v", active)
	}
	if got := repo.reservationStatus(id); got != "expired" {
		t.Errorf("expected status expired, got %s", got)
	}
}

func TestReserve_AfterExpiryByNewHolder(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	if _, err := svc.Reserve(ctx, "p1", "u2", "Bob", "bob@example.com"); err != nil {
		t.Fatalf("reserve after expiry failed: %v", err)
	}
	active, err := svc.GetActive(ctx, "p1")
	if err != nil {
		t.Fatalf("getActive failed: %v", err)
	}
	if active == nil || active.HolderID != "u2" {
		t.Errorf("expected active claim held by u2, got %+v", active)
	}
}

func TestCheckAvailability(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	av, err := svc.CheckAvailability(ctx, "p1", "u2")
	if err != nil {
		t.Fatalf("checkAvailability failed: %v", err)
	}
	if !av.Available {
		t.Error("expected available with no claim")
	}

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	av, err = svc.CheckAvailability(ctx, "p1", "u2")
	if err != nil {
		t.Fatalf("checkAvailability failed: %v", err)
	}
	if av.Available {
		t.Error("expected unavailable for another holder")
	}
	if av.HolderName != "Alice" {
		t.Errorf("expected holder name Alice, got %s", av.HolderName)
	}
	if av.ExpiresIn == "" {
		t.Error("expected a remaining-time label")
	}

	av, err = svc.CheckAvailability(ctx, "p1", "u1")
	if err != nil {
		t.Fatalf("checkAvailability failed: %v", err)
	}
	if !av.Available {
		t.Error("expected available for the claim holder")
	}
}

func TestComplete(t *testing.T) {
	svc, repo, _ := newReservationEnv()
	ctx := context.Background()

	id, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// Wrong holder: no-op failure, no error.
	done, err := svc.Complete(ctx, "p1", "u2")
	if err != nil || done {
		t.Errorf("expected (false, nil) for wrong holder, got (%v, %v)", done, err)
	}

	done, err = svc.Complete(ctx, "p1", "u1")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !done {
		t.Error("expected completion to succeed")
	}
	if got := repo.reservationStatus(id); got != "completed" {
		t.Errorf("expected status completed, got %s", got)
	}

	// Missing claim: no-op failure.
	done, err = svc.Complete(ctx, "p1", "u1")
	if err != nil || done {
		t.Errorf("expected (false, nil) for missing claim, got (%v, %v)", done, err)
	}
}

func TestSweepExpired(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := svc.Reserve(ctx, "p2", "u2", "Bob", "bob@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := svc.Reserve(ctx, "p3", "u3", "Carol", "carol@example.com"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 expired claims, got %d", n)
	}

	active, err := svc.GetActive(ctx, "p3")
	if err != nil {
		t.Fatalf("getActive failed: %v", err)
	}
	if active == nil {
		t.Error("expected p3 claim to survive the sweep")
	}
}

func TestReserve_ConcurrentOnlyOneWins(t *testing.T) {
	svc, _, _ := newReservationEnv()
	ctx := context.Background()

	const shoppers = 20
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			holder := fmt.Sprintf("u%d", n)
			if _, err := svc.Reserve(ctx, "p1", holder, "Shopper "+holder, holder+"@example.com"); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
	active, err := svc.GetActive(ctx, "p1")
	if err != nil {
		t.Fatalf("getActive failed: %v", err)
	}
	if active == nil {
		t.Error("expected one live claim after the race")
	}
}

func TestReserve_CacheOutageFallsThrough(t *testing.T) {
	svc, _, cache := newReservationEnv()
	cache.acquireErr = errors.New("redis down")

	if _, err := svc.Reserve(context.Background(), "p1", "u1", "Alice", "alice@example.com"); err != nil {
		t.Errorf("expected ledger to stay authoritative during cache outage, got: %v", err)
	}
}
