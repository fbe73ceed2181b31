package memory

import (
	"context"
	"testing"
)

func TestSetIfAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	ok, err := s.SetIfAbsent(ctx, "k", "v1")
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, "k", "v2")
	if err != nil || ok {
		t.Fatalf("second SetIfAbsent = (%v, %v), want (false, nil)", ok, err)
	}
	value, exists, err := s.Get(ctx, "k")
	if err != nil || !exists || value != "v1" {
		t.Fatalf("Get = (%q, %v, %v), want (v1, true, nil)", value, exists, err)
	}
}

func TestIncrement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	value, err := s.Increment(ctx, "count", 1)
	if err != nil || value != 1 {
		t.Fatalf("Increment missing key = (%d, %v), want (1, nil)", value, err)
	}
	value, err = s.Increment(ctx, "count", 4)
	if err != nil || value != 5 {
		t.Fatalf("Increment = (%d, %v), want (5, nil)", value, err)
	}

	if err := s.Set(ctx, "bad", "not-a-number"); err != nil {
		t.Fatalf("Set error = %v", err)
	}
	if _, err := s.Increment(ctx, "bad", 1); err == nil {
		t.Fatal("Increment over non-integer should fail")
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	_, exists, err := New().Get(context.Background(), "missing")
	if err != nil || exists {
		t.Fatalf("Get missing = (exists=%v, err=%v), want (false, nil)", exists, err)
	}
}
