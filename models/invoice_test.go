package models

import (
	"testing"
	"time"
)

func TestBuildInvoiceStatus(t *testing.T) {
	card := &Card{ID: "card-1", ClosingDay: 10, DueDay: 20}
	m := mustMonth(t, "2024-03")
	cardID := card.ID
	other := m.Add(1)

	txs := []Transaction{
		{ID: "a", CardID: &cardID, InvoiceMonth: &m, Type: TypeExpense, Amount: dec("80"), Date: NewDate(2024, time.March, 2)},
		{ID: "b", CardID: &cardID, InvoiceMonth: &m, Type: TypeExpense, Amount: dec("30"), Date: NewDate(2024, time.February, 20)},
		{ID: "c", CardID: &cardID, InvoiceMonth: &m, Type: TypeIncome, Amount: dec("10"), Date: NewDate(2024, time.March, 1)},
		{ID: "d", CardID: &cardID, InvoiceMonth: &other, Type: TypeExpense, Amount: dec("500"), Date: NewDate(2024, time.March, 12)},
	}
	pay := func(amount string) []InvoicePayment {
		return []InvoicePayment{{ID: "p", Amount: dec(amount)}}
	}
	closedAt := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		txs      []Transaction
		stored   *Invoice
		payments []InvoicePayment
		today    Date
		want     string
	}{
		{"open before closing", txs, nil, nil, NewDate(2024, time.March, 5), InvoiceOpen},
		{"manually closed", txs, &Invoice{ID: "i", ClosedAt: &closedAt}, nil, NewDate(2024, time.March, 5), InvoiceClosed},
		{"closed on closing day", txs, nil, nil, NewDate(2024, time.March, 10), InvoiceClosed},
		{"partial", txs, nil, pay("40"), NewDate(2024, time.March, 15), InvoicePartial},
		{"overdue", txs, nil, pay("40"), NewDate(2024, time.March, 21), InvoiceOverdue},
		{"due day is not overdue", txs, nil, nil, NewDate(2024, time.March, 20), InvoiceClosed},
		{"paid", txs, nil, pay("100"), NewDate(2024, time.March, 25), InvoicePaid},
		{"paid before closing", txs, nil, pay("100"), NewDate(2024, time.March, 1), InvoicePaid},
		{"empty and closed", nil, nil, nil, NewDate(2024, time.March, 11), InvoicePaid},
		{"empty and open", nil, nil, nil, NewDate(2024, time.March, 1), InvoiceOpen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detail := BuildInvoice(card, m, tc.txs, tc.stored, tc.payments, tc.today)
			if detail.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, detail.Status)
			}
		})
	}

	detail := BuildInvoice(card, m, txs, nil, pay("40"), NewDate(2024, time.March, 15))
	if !detail.Total.Equal(dec("100")) {
		t.Fatalf("expected total 100 (expenses minus refunds), got %s", detail.Total)
	}
	if !detail.Remaining.Equal(dec("60")) {
		t.Fatalf("expected remaining 60, got %s", detail.Remaining)
	}
	if len(detail.Transactions) != 3 || detail.Transactions[0].ID != "b" {
		t.Fatalf("expected 3 rows sorted by date, got %+v", detail.Transactions)
	}
	if detail.ClosingDate.String() != "2024-03-10" || detail.DueDate.String() != "2024-03-20" {
		t.Fatalf("unexpected cycle dates %s / %s", detail.ClosingDate, detail.DueDate)
	}
	if s := detail.Summary(); s.Count != 3 || s.Status != InvoicePartial {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestBuildInvoiceRemainingNeverNegative(t *testing.T) {
	card := &Card{ID: "card-1", ClosingDay: 10, DueDay: 20}
	m := mustMonth(t, "2024-03")
	cardID := card.ID
	txs := []Transaction{
		{CardID: &cardID, InvoiceMonth: &m, Type: TypeIncome, Amount: dec("50")},
	}
	detail := BuildInvoice(card, m, txs, nil, nil, NewDate(2024, time.March, 11))
	if !detail.Total.Equal(dec("-50")) || !detail.Remaining.IsZero() {
		t.Fatalf("unexpected total/remaining %s / %s", detail.Total, detail.Remaining)
	}
	if detail.Status != InvoicePaid {
		t.Fatalf("a closed credit-only invoice is settled, got %s", detail.Status)
	}
}
