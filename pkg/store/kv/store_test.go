//go:build integration

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aquilhq/actionlog/pkg/models"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetSet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("expected v1, got %q", got)
	}

	_, err = store.Get(ctx, "missing")
	if !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSetNX(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	existing, stored, err := store.SetNX(ctx, "k1", []byte("first"), 0)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !stored || existing != nil {
		t.Errorf("expected first writer to win, stored=%v existing=%q", stored, existing)
	}

	existing, stored, err = store.SetNX(ctx, "k1", []byte("second"), 0)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if stored {
		t.Error("expected second writer to lose")
	}
	if string(existing) != "first" {
		t.Errorf("expected loser to observe winner's value, got %q", existing)
	}
}

func TestUpdateEntry(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	// Counter-style read-modify-write
	inc := func(old []byte) ([]byte, error) {
		n := 0
		if old != nil {
			if err := json.Unmarshal(old, &n); err != nil {
				return nil, err
			}
		}
		return json.Marshal(n + 1)
	}

	for i := 0; i < 3; i++ {
		if err := store.UpdateEntry(ctx, "counter", 0, inc); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	got, err := store.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "3" {
		t.Errorf("expected 3, got %s", got)
	}

	// fn returning nil deletes
	if err := store.UpdateEntry(ctx, "counter", 0, func([]byte) ([]byte, error) { return nil, nil }); err != nil {
		t.Fatalf("delete via update failed: %v", err)
	}
	if _, err := store.Get(ctx, "counter"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("expected key deleted, got %v", err)
	}
}

func TestListKeysAndScan(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"log:a", "log:b", "circuit_breaker:obj"} {
		if err := store.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	keys, err := store.ListKeys(ctx, PrefixLog)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 log keys, got %d: %v", len(keys), keys)
	}

	var visited int
	err = store.Scan(ctx, PrefixLog, func(key string, value []byte) (bool, error) {
		visited++
		return visited < 1, nil // stop after the first
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if visited != 1 {
		t.Errorf("expected early stop after 1 visit, got %d", visited)
	}
}

func TestLogMirror(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	e := &models.Envelope{
		ID:          "id-1",
		Timestamp:   time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		OperationID: "trustCheckIn",
		Kind:        "trustCheckIn",
		Level:       models.LevelInfo,
		SessionID:   "s1",
		Payload:     json.RawMessage(`{"x":1}`),
	}

	if err := store.WriteLog(ctx, e); err != nil {
		t.Fatalf("write log failed: %v", err)
	}

	ok, err := store.HasLog(ctx, "id-1")
	if err != nil || !ok {
		t.Fatalf("expected mirrored log present, ok=%v err=%v", ok, err)
	}

	got, err := store.ReadLog(ctx, "id-1")
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if got.OperationID != "trustCheckIn" || got.SessionID != "s1" {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("expected timestamp preserved, got %v", got.Timestamp)
	}
}

func TestLogTTL(t *testing.T) {
	store, err := New(Config{InMemory: true, LogTTL: time.Second})
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	e := &models.Envelope{ID: "ttl-1", Timestamp: time.Now(), OperationID: "sessionInit", Kind: "sessionInit", Level: models.LevelInfo}
	if err := store.WriteLog(ctx, e); err != nil {
		t.Fatalf("write log failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := store.ReadLog(ctx, "ttl-1"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Errorf("expected entry to expire, got %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	store := createTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
