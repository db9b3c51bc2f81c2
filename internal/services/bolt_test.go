package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/services"
)

func TestBoltDBExchanges(t *testing.T) {
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	exchanges, err := db.Exchanges(ctx, 0)
	if err != nil {
		t.Fatalf("Exchanges() error = %v", err)
	}
	if len(exchanges) != 0 {
		t.Fatalf("Exchanges() = %v, want empty", exchanges)
	}

	// More than nine entries checks that keys sort numerically, not lexically.
	for i := range 12 {
		id, err := db.AddExchange(ctx, models.Exchange{
			ID:        fmt.Sprintf("ex%d", i),
			Message:   fmt.Sprintf("question %d", i),
			Reply:     fmt.Sprintf("answer %d", i),
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("AddExchange() error = %v", err)
		}
		if want := fmt.Sprintf("%d-ex%d", i+1, i); id != want {
			t.Errorf("AddExchange() id = %q, want %q", id, want)
		}
	}

	all, err := db.Exchanges(ctx, 0)
	if err != nil {
		t.Fatalf("Exchanges() error = %v", err)
	}
	if len(all) != 12 {
		t.Fatalf("Exchanges() len = %d, want 12", len(all))
	}
	if all[0].Message != "question 0" || all[11].Message != "question 11" {
		t.Errorf("Exchanges() order = %q..%q, want question 0..question 11", all[0].Message, all[11].Message)
	}

	recent, err := db.Exchanges(ctx, 3)
	if err != nil {
		t.Fatalf("Exchanges() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Exchanges(3) len = %d, want 3", len(recent))
	}
	if recent[0].Reply != "answer 9" || recent[2].Reply != "answer 11" {
		t.Errorf("Exchanges(3) = %q..%q, want answer 9..answer 11", recent[0].Reply, recent[2].Reply)
	}

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	all, err = db.Exchanges(ctx, 0)
	if err != nil {
		t.Fatalf("Exchanges() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Exchanges() after Reset len = %d, want 0", len(all))
	}

	id, err := db.AddExchange(ctx, models.Exchange{ID: "again"})
	if err != nil {
		t.Fatalf("AddExchange() error = %v", err)
	}
	if id != "1-again" {
		t.Errorf("AddExchange() after Reset id = %q, want %q", id, "1-again")
	}
}
