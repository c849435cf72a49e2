package delivery

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_MarkSeenFirstTime(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seen, err := l.MarkSeen(ctx, "delivery-abc", "push")
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if seen {
		t.Error("expected first delivery to be unseen")
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recorded delivery, got %d", n)
	}
}

func TestLedger_MarkSeenDuplicate(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.MarkSeen(ctx, "delivery-abc", "push"); err != nil {
		t.Fatalf("first MarkSeen failed: %v", err)
	}

	seen, err := l.MarkSeen(ctx, "delivery-abc", "push")
	if err != nil {
		t.Fatalf("second MarkSeen failed: %v", err)
	}
	if !seen {
		t.Error("expected replayed delivery to be reported as seen")
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected duplicate to leave a single row, got %d", n)
	}
}

func TestLedger_MarkSeenDistinctIDs(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"delivery-1", "delivery-2", "delivery-3"} {
		seen, err := l.MarkSeen(ctx, id, "push")
		if err != nil {
			t.Fatalf("MarkSeen(%q) failed: %v", id, err)
		}
		if seen {
			t.Errorf("expected %q to be unseen", id)
		}
	}
}

func TestLedger_Prune(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Backdate one row past the retention window.
	old := time.Now().UTC().Add(-Retention - 24*time.Hour).Format(time.RFC3339)
	if _, err := l.db.Exec(`
		INSERT INTO deliveries (id, event, received_at) VALUES (?, ?, ?)
	`, "delivery-old", "push", old); err != nil {
		t.Fatalf("failed to insert backdated row: %v", err)
	}
	if _, err := l.MarkSeen(ctx, "delivery-fresh", "push"); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	deleted, err := l.Prune(ctx, Retention)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned row, got %d", deleted)
	}

	// The pruned ID is unseen again; the fresh one is still known.
	seen, err := l.MarkSeen(ctx, "delivery-old", "push")
	if err != nil {
		t.Fatalf("MarkSeen after prune failed: %v", err)
	}
	if seen {
		t.Error("expected pruned delivery to be unseen")
	}
	seen, err = l.MarkSeen(ctx, "delivery-fresh", "push")
	if err != nil {
		t.Fatalf("MarkSeen after prune failed: %v", err)
	}
	if !seen {
		t.Error("expected fresh delivery to survive pruning")
	}
}

func TestLedger_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "deliveries.db")
	ctx := context.Background()

	l, err := NewLedger(dbPath)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	if _, err := l.MarkSeen(ctx, "delivery-abc", "push"); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	l, err = NewLedger(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	defer l.Close()

	seen, err := l.MarkSeen(ctx, "delivery-abc", "push")
	if err != nil {
		t.Fatalf("MarkSeen after reopen failed: %v", err)
	}
	if !seen {
		t.Error("expected delivery recorded before reopen to be seen")
	}
}
