package registers

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

func TestGetTriggersFetchWhenInvalid(t *testing.T) {
	var calls int32
	c := NewCache(func() (protocol.RegisterSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		var s protocol.RegisterSnapshot
		s[protocol.RegPC] = 0x1234
		return s, nil
	})

	if c.Valid() {
		t.Fatal("new cache must start invalid")
	}
	pc, err := c.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != 0x1234 {
		t.Fatalf("pc = %#x, want 0x1234", pc)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestGetDoesNotRefetchWhenValid(t *testing.T) {
	var calls int32
	c := NewCache(func() (protocol.RegisterSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		return protocol.RegisterSnapshot{}, nil
	})
	if _, err := c.Get(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := NewCache(func() (protocol.RegisterSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return protocol.RegisterSnapshot{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get()
		}()
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1 (coalesced)", calls)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var calls int32
	c := NewCache(func() (protocol.RegisterSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		return protocol.RegisterSnapshot{}, nil
	})
	if _, err := c.Get(); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if c.Valid() {
		t.Fatal("expected invalid after Invalidate")
	}
	if _, err := c.Get(); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}
