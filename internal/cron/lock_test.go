package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryLocker struct {
	owners    map[string]string
	unlockErr error
}

func (m *memoryLocker) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key] = token
	return true, nil
}

func (m *memoryLocker) Unlock(_ context.Context, key, token string) (bool, error) {
	if m.unlockErr != nil {
		return false, m.unlockErr
	}
	if m.owners[key] != token {
		return false, nil
	}
	delete(m.owners, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryLocker{owners: map[string]string{}}
	first, err := NewRedisLock(store, "bz:lock:cron-worker", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "bz:lock:cron-worker", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second worker must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.owners["bz:lock:cron-worker"]; !held {
		t.Fatal("non-owner release removed the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockExpiredLeaseLeavesSuccessorAlone(t *testing.T) {
	store := &memoryLocker{owners: map[string]string{}}
	stale, _ := NewRedisLock(store, "bz:lock:cron-worker", time.Minute)
	successor, _ := NewRedisLock(store, "bz:lock:cron-worker", time.Minute)
	ctx := context.Background()

	if _, err := stale.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	delete(store.owners, "bz:lock:cron-worker")
	if ok, _ := successor.Acquire(ctx); !ok {
		t.Fatal("successor should take the expired lock")
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.owners["bz:lock:cron-worker"]; !held {
		t.Fatal("stale worker freed the successor's lock")
	}
}

func TestRedisLockReleaseSurfacesErrorsOnce(t *testing.T) {
	store := &memoryLocker{owners: map[string]string{}, unlockErr: errors.New("conn reset")}
	lock, _ := NewRedisLock(store, "bz:lock:cron-worker", time.Minute)
	ctx := context.Background()
	_, _ = lock.Acquire(ctx)

	if err := lock.Release(ctx); err == nil {
		t.Fatal("expected unlock error")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
}
