package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"valuebot/internal/domain"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.GetOrCreate(ctx, 10)
			if err != nil {
				t.Fatalf("GetOrCreate: %v", err)
			}
			if got.UserID != 10 || got.State != domain.StateIdle {
				t.Fatalf("expected fresh idle session, got %#v", got)
			}

			got.State = domain.StateAwaitingValue
			got.ValuesThreadID = "thread_values"
			got.ChatThreadID = "thread_chat"
			if err := s.Save(ctx, got); err != nil {
				t.Fatalf("Save: %v", err)
			}

			again, err := s.GetOrCreate(ctx, 10)
			if err != nil {
				t.Fatalf("GetOrCreate after save: %v", err)
			}
			if !again.Awaiting() || again.ValuesThreadID != "thread_values" || again.ChatThreadID != "thread_chat" {
				t.Fatalf("session not persisted: %#v", again)
			}
			if again.UpdatedAt.IsZero() {
				t.Fatal("expected UpdatedAt to be set on save")
			}

			if n, err := s.Len(ctx); err != nil || n != 1 {
				t.Fatalf("Len = %d, %v", n, err)
			}

			if err := s.Reset(ctx, 10); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			reset, err := s.GetOrCreate(ctx, 10)
			if err != nil {
				t.Fatalf("GetOrCreate after reset: %v", err)
			}
			if reset.Awaiting() || reset.ValuesThreadID != "" || reset.ChatThreadID != "" {
				t.Fatalf("expected reset session, got %#v", reset)
			}
		})
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	sess := domain.NewSession(5)
	sess.State = domain.StateAwaitingValue
	sess.ValuesThreadID = "thread_1"
	if err := s.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.GetOrCreate(ctx, 5)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !got.Awaiting() || got.ValuesThreadID != "thread_1" {
		t.Fatalf("unexpected session after reopen: %#v", got)
	}
}

func TestLockerSerializesPerUser(t *testing.T) {
	l := NewLocker()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(1)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder per user, saw %d", maxSeen)
	}
	if l.size() != 0 {
		t.Fatalf("expected lock entries to be released, got %d", l.size())
	}
}

func TestLockerIndependentUsers(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock(2)
		unlock()
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock of another user must not block")
	}
}
