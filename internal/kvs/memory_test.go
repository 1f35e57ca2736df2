package kvs

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	defer s.Close()

	if err := s.SetTTL(ctx, "k1", "v1", time.Minute); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}

	v, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v1" {
		t.Errorf("got %q, want %q", v, "v1")
	}

	if err := s.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after Del, got %v", err)
	}
}

func TestInMemoryStore_ExpiresOnTTL(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	defer s.Close()

	if err := s.SetTTL(ctx, "k1", "v1", 10*time.Millisecond); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := s.Get(ctx, "k1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestInMemoryStore_IncrTTL(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	defer s.Close()

	for i := int64(1); i <= 3; i++ {
		n, err := s.IncrTTL(ctx, "attempts:u1:login", 5*time.Minute)
		if err != nil {
			t.Fatalf("IncrTTL: %v", err)
		}
		if n != i {
			t.Errorf("IncrTTL call %d: got %d, want %d", i, n, i)
		}
	}
}

func TestInMemoryStore_ScanPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	defer s.Close()

	_ = s.SetTTL(ctx, "rt:a", "1", time.Minute)
	_ = s.SetTTL(ctx, "rt:b", "1", time.Minute)
	_ = s.SetTTL(ctx, "2fa:x", "1", time.Minute)

	keys, err := s.ScanPrefix(ctx, "rt:")
	if err != nil {
		t.Fatalf("ScanPrefix: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("got %d keys, want 2: %v", len(keys), keys)
	}
}
