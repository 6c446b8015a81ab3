package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sqlagent/sqlagent/internal/pipeline"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

func TestMemoryStoreCreatesOnFirstUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	got, err := store.Update(ctx, "s-1", func(s *Session) error {
		s.RecordMessage("hello")
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.ID != "s-1" || got.UserQuery != "hello" || len(got.ChatHistory) != 1 {
		t.Fatalf("Update() = %#v", got)
	}

	stored, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.UserQuery != "hello" {
		t.Fatalf("stored UserQuery = %q", stored.UserQuery)
	}
}

func TestMemoryStoreDiscardsFailedUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Update(ctx, "s-1", func(s *Session) error {
		s.RecordMessage("first")
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, "s-1", func(s *Session) error {
		s.RecordMessage("second")
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	stored, _ := store.Get(ctx, "s-1")
	if len(stored.ChatHistory) != 1 || stored.UserQuery != "first" {
		t.Fatalf("failed update leaked: %#v", stored)
	}

	if _, err := store.Update(ctx, "s-2", func(*Session) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := store.Get(ctx, "s-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(s-2) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, _ := store.Update(ctx, "s-1", func(s *Session) error {
		s.RecordMessage("hello")
		return nil
	})
	got.ChatHistory[0] = "mutated"

	stored, _ := store.Get(ctx, "s-1")
	if stored.ChatHistory[0] != "hello" {
		t.Fatalf("store aliased caller slice: %q", stored.ChatHistory[0])
	}
}

func TestMemoryStoreSerializesPerSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(s *Session) error {
				s.RecordMessage(fmt.Sprintf("m-%d", i))
				return nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(stored.ChatHistory) != writers {
		t.Fatalf("len(ChatHistory) = %d, want %d", len(stored.ChatHistory), writers)
	}
}

func TestApplyRunCopiesState(t *testing.T) {
	now := time.Date(2026, 2, 19, 10, 0, 0, 0, time.FixedZone("x", 3600))
	state := pipeline.State{
		UserInput:     "q",
		SQLQuery:      "SELECT 1",
		QueryResults:  []warehouse.Row{warehouse.NewRow([]string{"a"}, []any{1})},
		FinalResponse: "done",
		History:       []string{"one", "two"},
	}

	s := New("s-1")
	s.RecordMessage("q")
	s.ApplyRun(state, now)
	state.History[0] = "changed"

	if s.SQLQuery != "SELECT 1" || s.FinalResponse != "done" || len(s.QueryResults) != 1 {
		t.Fatalf("ApplyRun() = %#v", s)
	}
	if s.History[0] != "one" {
		t.Fatalf("ApplyRun() aliased history")
	}
	if !s.UpdatedAt.Equal(now) || s.UpdatedAt.Location() != time.UTC {
		t.Fatalf("UpdatedAt = %v", s.UpdatedAt)
	}

	s.ApplyRun(pipeline.State{}, now)
	if s.QueryResults == nil || s.History == nil {
		t.Fatal("ApplyRun() left nil slices")
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().Update(ctx, "s", func(*Session) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("Update() error = %v", err)
	}
}
