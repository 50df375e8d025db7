package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"mana/internal/logger"
)

func init() {
	logger.Init("test")
}

func TestValidateSpec(t *testing.T) {
	for _, spec := range []string{"0 3 * * *", "0 2 1 * *", "@daily"} {
		if err := ValidateSpec(spec); err != nil {
			t.Errorf("spec %q: unexpected error %v", spec, err)
		}
	}
	for _, spec := range []string{"", "61 * * * *", "every day"} {
		if err := ValidateSpec(spec); err == nil {
			t.Errorf("spec %q: expected error", spec)
		}
	}
}

func TestScheduler(t *testing.T) {
	t.Run("rejects_bad_spec", func(t *testing.T) {
		s := New()
		if err := s.Add("broken", "not a spec", func(context.Context) error { return nil }); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("run_passes_scheduler_context", func(t *testing.T) {
		s := New()
		var got context.Context
		s.run("snapshots", func(ctx context.Context) error {
			got = ctx
			return errors.New("logged, not returned")
		})
		if got == nil || got.Err() != nil {
			t.Fatal("expected live context")
		}
		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("unexpected stop error: %v", err)
		}
		if got.Err() == nil {
			t.Error("expected context cancelled after stop")
		}
	})

	t.Run("start_stop", func(t *testing.T) {
		s := New()
		if err := s.Add("noop", "@every 1h", func(context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Start()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			t.Fatalf("unexpected stop error: %v", err)
		}
	})
}
