package webdav

import (
	"sync"
	"testing"
)

func TestLockRegistrySetClear(t *testing.T) {
	r := NewLockRegistry()
	lock := &Lock{UID: "uid1", Token: "tok1"}

	if err := r.Set("uid1", lock); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := r.Get("uid1"); got != lock {
		t.Fatalf("Get returned %v, want %v", got, lock)
	}
	if err := r.Set("uid1", lock); err == nil {
		t.Fatal("expected Set on an already-locked uid to fail")
	}
	if err := r.Clear("uid1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := r.Clear("uid1"); err == nil {
		t.Fatal("expected Clear on an unlocked uid to fail")
	}
}

func TestLockRegistryConcurrentSetOnlyOneWins(t *testing.T) {
	r := NewLockRegistry()
	const n = 50

	var wg sync.WaitGroup
	successes := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Set("shared-uid", &Lock{UID: "shared-uid", Token: "t"})
			successes <- err == nil
		}(i)
	}
	wg.Wait()
	close(successes)

	count := 0
	for ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("got %d successful concurrent Set calls on the same uid, want exactly 1", count)
	}
}

func TestAuthorizeWrite(t *testing.T) {
	r := NewLockRegistry()

	if got := r.AuthorizeWrite("uid1", ""); got != WriteOK {
		t.Fatalf("no lock: got %v, want WriteOK", got)
	}

	lock := &Lock{UID: "uid1", Token: "tok"}
	if err := r.Set("uid1", lock); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := r.AuthorizeWrite("uid1", ""); got != WriteNeedsToken {
		t.Fatalf("missing token: got %v, want WriteNeedsToken", got)
	}
	if got := r.AuthorizeWrite("uid1", "wrong"); got != WriteLocked {
		t.Fatalf("wrong token: got %v, want WriteLocked", got)
	}
	if got := r.AuthorizeWrite("uid1", "tok"); got != WriteOK {
		t.Fatalf("correct token: got %v, want WriteOK", got)
	}
}

func TestNewTokenUnique(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if a == b {
		t.Fatal("two tokens collided")
	}
	if len(a) != 32 {
		t.Fatalf("got token of length %d, want 32 hex chars for 128 bits", len(a))
	}
}
