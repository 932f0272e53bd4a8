package query_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"ParaLedger/internal/persistence"
	"ParaLedger/internal/query"
	"ParaLedger/internal/testutil"
)

// These tests need a running Postgres with migrations applied; they skip
// unless INTEGRATION_TEST is set and the database is reachable.

// writeChain builds n hash-chained event rows for one account.
func writeChain(t *testing.T, account string, n int) []persistence.EventRow {
	t.Helper()
	prev := make([]byte, 32)
	events := make([]persistence.EventRow, 0, n)
	for i := 0; i < n; i++ {
		h := sha256.Sum256(append(prev, byte(i)))
		acct := account
		events = append(events, persistence.EventRow{
			Sequence:  int64(i),
			EventType: "PolicyCreated",
			Account:   &acct,
			Payload:   []byte(`{}`),
			StateHash: h[:],
			PrevHash:  append([]byte(nil), prev...),
			Timestamp: time.Now().UTC(),
		})
		prev = h[:]
	}
	return events
}

func TestGetPolicy_RoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	w := persistence.NewEventLogWriter(db)
	svc := query.NewService(db)
	account := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = w.UpsertPolicy(ctx, tx, persistence.PolicyRow{
		Account:         account.String(),
		PremiumAmount:   1000,
		StartTime:       now,
		DurationYears:   2,
		IsActive:        true,
		LastRewardClaim: now,
		Version:         1,
		UpdatedSeq:      7,
	})
	if err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	err = w.UpsertStatus(ctx, tx, persistence.StatusRow{
		PoolBalance:            1000,
		TotalPremiumsCollected: 1000,
		UpdatedSeq:             7,
	})
	if err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	pol, err := svc.GetPolicy(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if pol.PremiumAmount != 1000 || pol.DurationYears != 2 || !pol.IsActive {
		t.Errorf("unexpected policy: %+v", pol)
	}
	if pol.AsOfSequence != 7 {
		t.Errorf("as_of_sequence = %d, want 7", pol.AsOfSequence)
	}

	status, err := svc.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.PoolBalance != 1000 || status.AsOfSequence != 7 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestGetPolicy_NotFound(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	svc := query.NewService(db)
	_, err := svc.GetPolicy(context.Background(), uuid.New())
	if !errors.Is(err, query.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventPaging(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	w := persistence.NewEventLogWriter(db)
	svc := query.NewService(db)
	account := uuid.New()

	events := writeChain(t, account.String(), 5)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteEventBatch(ctx, tx, events); err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	page, err := svc.GetEvents(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Sequence != 2 || page[1].Sequence != 3 {
		t.Errorf("unexpected page: %+v", page)
	}

	history, err := svc.GetAccountEvents(ctx, account, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 5 || history[0].Sequence != 4 {
		t.Errorf("account history should be newest first, got %+v", history)
	}
}

func TestVerifyChain(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	w := persistence.NewEventLogWriter(db)
	svc := query.NewService(db)

	events := writeChain(t, uuid.New().String(), 4)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteEventBatch(ctx, tx, events); err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	report, err := svc.VerifyChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.ChainIntact || report.EventsChecked != 4 {
		t.Errorf("unexpected report: %+v", report)
	}

	// Corrupt one link and the walk must report the break.
	if _, err := db.Exec(
		`UPDATE event_log.events SET prev_hash = $1 WHERE sequence = 2`,
		make([]byte, 32),
	); err != nil {
		t.Fatal(err)
	}

	report, err = svc.VerifyChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.ChainIntact {
		t.Error("chain reported intact after corruption")
	}
	if report.FirstBreakSeq != 2 {
		t.Errorf("first break at %d, want 2", report.FirstBreakSeq)
	}
}
