package services

import (
	"testing"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
)

// sharedPair links ana and bob and has each of them pay one shared expense in
// March: ana 100 (bob owes 50) and bob 30 (ana owes 15).
func sharedPair(t *testing.T) (*fixture, string, string) {
	t.Helper()
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	f.user(t, "bob", "bob@example.com")
	f.link(t, "ana", "bob")
	txs := f.transactions()

	a := expense("ana", "Aluguel", "100", "2025-03-05")
	a.Shared = true
	anaRows, err := txs.Create(ctx, "ana", a)
	if err != nil {
		t.Fatal(err)
	}
	b := expense("bob", "Feira", "30", "2025-03-08")
	b.Shared = true
	bobRows, err := txs.Create(ctx, "bob", b)
	if err != nil {
		t.Fatal(err)
	}
	f.pub.Events = nil
	return f, anaRows[0].ID, bobRows[0].ID
}

func TestSharedSummaryBalance(t *testing.T) {
	f, _, _ := sharedPair(t)
	m := month("2025-03")

	summary, err := f.shared().Summary(ctx, "ana", &m)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(summary.Items))
	}
	b := summary.Balance
	if !b.OwedToMe.Equal(dec("50")) || !b.IOwe.Equal(dec("15")) || !b.Net.Equal(dec("35")) {
		t.Fatalf("balance = %+v", b)
	}

	bob, err := f.shared().Summary(ctx, "bob", &m)
	if err != nil {
		t.Fatal(err)
	}
	if !bob.Balance.Net.Equal(dec("-35")) {
		t.Fatalf("bob net = %s, want -35", bob.Balance.Net)
	}
}

func TestPaySplit(t *testing.T) {
	f, anaTx, _ := sharedPair(t)
	svc := f.shared()

	_, err := svc.PaySplit(ctx, "ana", anaTx, models.PaySplitRequest{})
	assertIs(t, err, models.ErrForbidden)

	_, err = svc.PaySplit(ctx, "bob", anaTx, models.PaySplitRequest{Amount: dec("60")})
	assertValidation(t, err, "amount")

	tx, err := svc.PaySplit(ctx, "bob", anaTx, models.PaySplitRequest{Amount: dec("20")})
	if err != nil {
		t.Fatal(err)
	}
	if s := tx.SplitOf("bob"); !s.PaidAmount.Equal(dec("20")) || s.Paid {
		t.Fatalf("after partial payment split = %+v", s)
	}

	tx, err = svc.PaySplit(ctx, "bob", anaTx, models.PaySplitRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if s := tx.SplitOf("bob"); !s.Paid || s.PaidAt == nil {
		t.Fatalf("empty amount should pay the rest, split = %+v", s)
	}

	_, err = svc.PaySplit(ctx, "bob", anaTx, models.PaySplitRequest{})
	assertIs(t, err, models.ErrConflict)

	for _, e := range f.pub.Events {
		if e.Type != events.SplitPaid {
			t.Fatalf("unexpected event %s", e.Type)
		}
	}
}

func TestSettleReportsNetBeforeSettling(t *testing.T) {
	f, anaTx, bobTx := sharedPair(t)
	svc := f.shared()

	result, err := svc.Settle(ctx, "ana", month("2025-03"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Settled != 2 || !result.Net.Equal(dec("35")) {
		t.Fatalf("result = %+v", result)
	}
	for id, debtor := range map[string]string{anaTx: "bob", bobTx: "ana"} {
		tx, _ := f.repo.GetTransaction(ctx, id)
		if s := tx.SplitOf(debtor); !s.Paid {
			t.Fatalf("split of %s on %s is still pending", debtor, id)
		}
	}
	if got := f.pub.Types(); len(got) != 1 || got[0] != events.SharedSettled {
		t.Fatalf("events = %v", got)
	}

	again, err := svc.Settle(ctx, "bob", month("2025-03"))
	if err != nil {
		t.Fatal(err)
	}
	if again.Settled != 0 || !again.Net.IsZero() {
		t.Fatalf("second settle = %+v", again)
	}
}
