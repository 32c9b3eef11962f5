package models

import (
	"fmt"
	"testing"
	"time"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestTransactionRequestNormalize(t *testing.T) {
	card := "card-1"
	cases := []struct {
		name    string
		req     TransactionRequest
		wantErr string
	}{
		{
			name: "plain expense",
			req:  TransactionRequest{Description: "Mercado", Amount: dec("10"), Type: TypeExpense, PaymentMethod: MethodPix, Date: NewDate(2024, 1, 1)},
		},
		{
			name:    "credit without card",
			req:     TransactionRequest{Description: "TV", Amount: dec("10"), Type: TypeExpense, PaymentMethod: MethodCredit, Date: NewDate(2024, 1, 1)},
			wantErr: "card_id",
		},
		{
			name:    "installments on pix",
			req:     TransactionRequest{Description: "TV", Amount: dec("10"), Type: TypeExpense, PaymentMethod: MethodPix, Installments: 3, Date: NewDate(2024, 1, 1)},
			wantErr: "installments",
		},
		{
			name:    "installments with recurrence",
			req:     TransactionRequest{Description: "TV", Amount: dec("10"), Type: TypeExpense, PaymentMethod: MethodCredit, CardID: &card, Installments: 3, Recurrence: RecurrenceMonthly, Date: NewDate(2024, 1, 1)},
			wantErr: "recurrence",
		},
		{
			name:    "shared income",
			req:     TransactionRequest{Description: "Salário", Amount: dec("10"), Type: TypeIncome, PaymentMethod: MethodPix, Shared: true, Date: NewDate(2024, 1, 1)},
			wantErr: "shared",
		},
		{
			name:    "missing date",
			req:     TransactionRequest{Description: "Mercado", Amount: dec("10"), Type: TypeExpense, PaymentMethod: MethodPix},
			wantErr: "date",
		},
		{
			name:    "fractional cents",
			req:     TransactionRequest{Description: "Mercado", Amount: dec("10.001"), Type: TypeExpense, PaymentMethod: MethodPix, Date: NewDate(2024, 1, 1)},
			wantErr: "amount",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Normalize()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.wantErr {
				t.Fatalf("expected error on %s, got %s", tc.wantErr, ve.Field)
			}
		})
	}
}

func TestBuildTransactionsInstallments(t *testing.T) {
	card := &Card{ID: "card-1", ClosingDay: 10, DueDay: 20}
	cardID := card.ID
	req := TransactionRequest{
		Description:   "Geladeira",
		Amount:        dec("100"),
		Type:          TypeExpense,
		CategoryID:    "cat",
		PaymentMethod: MethodCredit,
		CardID:        &cardID,
		Installments:  3,
		Date:          NewDate(2024, time.January, 15),
		Paid:          true,
	}
	if err := req.Normalize(); err != nil {
		t.Fatal(err)
	}
	rows := BuildTransactions(req, "u1", card, time.Now(), sequentialIDs())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantAmounts := []string{"33.34", "33.33", "33.33"}
	wantInvoices := []string{"2024-02", "2024-03", "2024-04"}
	wantDates := []string{"2024-01-15", "2024-02-15", "2024-03-15"}
	group := *rows[0].InstallmentGroupID
	for i, row := range rows {
		if !row.Amount.Equal(dec(wantAmounts[i])) {
			t.Fatalf("row %d: expected %s, got %s", i, wantAmounts[i], row.Amount)
		}
		if row.InvoiceMonth.String() != wantInvoices[i] {
			t.Fatalf("row %d: expected invoice %s, got %s", i, wantInvoices[i], row.InvoiceMonth)
		}
		if row.Date.String() != wantDates[i] {
			t.Fatalf("row %d: expected date %s, got %s", i, wantDates[i], row.Date)
		}
		if *row.InstallmentNumber != i+1 || *row.InstallmentTotal != 3 {
			t.Fatalf("row %d: bad installment numbering", i)
		}
		if *row.InstallmentGroupID != group {
			t.Fatalf("row %d: group id differs", i)
		}
		if row.Paid || row.PaidAt != nil {
			t.Fatalf("row %d: card rows must start unpaid", i)
		}
		if row.ID == "" || row.ID == group {
			t.Fatalf("row %d: bad id %q", i, row.ID)
		}
	}
	if rows[0].DueDate.String() != "2024-02-20" {
		t.Fatalf("expected first due date 2024-02-20, got %s", rows[0].DueDate)
	}
}

func TestBuildTransactionsRecurrence(t *testing.T) {
	req := TransactionRequest{
		Description:   "Aluguel",
		Amount:        dec("1500"),
		Type:          TypeExpense,
		PaymentMethod: MethodBoleto,
		Recurrence:    RecurrenceMonthly,
		Occurrences:   3,
		Date:          NewDate(2024, time.January, 31),
		Paid:          true,
	}
	if err := req.Normalize(); err != nil {
		t.Fatal(err)
	}
	rows := BuildTransactions(req, "u1", nil, time.Now(), sequentialIDs())
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, row := range rows {
		if row.Date.String() != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i, want[i], row.Date)
		}
		if !row.Amount.Equal(dec("1500")) {
			t.Fatalf("row %d: recurrence keeps the full amount, got %s", i, row.Amount)
		}
		if row.RecurrenceGroupID == nil || *row.RecurrenceGroupID != *rows[0].RecurrenceGroupID {
			t.Fatalf("row %d: missing shared recurrence group", i)
		}
	}
	if !rows[0].Paid || rows[0].PaidAt == nil {
		t.Fatal("first occurrence keeps the paid flag")
	}
	if rows[1].Paid || rows[2].Paid {
		t.Fatal("future occurrences start unpaid")
	}
}

func TestBuildTransactionsWeekly(t *testing.T) {
	req := TransactionRequest{
		Description:   "Feira",
		Amount:        dec("80"),
		Type:          TypeExpense,
		PaymentMethod: MethodCash,
		Recurrence:    RecurrenceWeekly,
		Date:          NewDate(2024, time.January, 1),
	}
	if err := req.Normalize(); err != nil {
		t.Fatal(err)
	}
	rows := BuildTransactions(req, "u1", nil, time.Now(), sequentialIDs())
	if len(rows) != DefaultOccurrences {
		t.Fatalf("expected %d default occurrences, got %d", DefaultOccurrences, len(rows))
	}
	if rows[1].Date.String() != "2024-01-08" {
		t.Fatalf("expected 2024-01-08, got %s", rows[1].Date)
	}
}

func TestTransactionFilterMatches(t *testing.T) {
	cardID := "card-1"
	invoice := mustMonth(t, "2024-04")
	paid := false
	tx := Transaction{
		UserID:       "u1",
		Description:  "Supermercado Extra",
		Type:         TypeExpense,
		Date:         NewDate(2024, time.March, 28),
		CardID:       &cardID,
		InvoiceMonth: &invoice,
		Shared:       true,
		Splits:       []Split{{UserID: "u1"}, {UserID: "u2"}},
	}
	march := mustMonth(t, "2024-03")
	april := mustMonth(t, "2024-04")

	cases := []struct {
		name   string
		filter TransactionFilter
		want   bool
	}{
		{"owner", TransactionFilter{UserID: "u1"}, true},
		{"partner without shared flag", TransactionFilter{UserID: "u2"}, false},
		{"partner with shared flag", TransactionFilter{UserID: "u2", IncludeShared: true}, true},
		{"stranger with shared flag", TransactionFilter{UserID: "u3", IncludeShared: true}, false},
		{"by date month", TransactionFilter{Month: &march}, true},
		{"by invoice month", TransactionFilter{Month: &april, ByInvoice: true}, true},
		{"wrong invoice month", TransactionFilter{Month: &march, ByInvoice: true}, false},
		{"search is case insensitive", TransactionFilter{Search: "extra"}, true},
		{"unpaid", TransactionFilter{Paid: &paid}, true},
		{"other card", TransactionFilter{CardID: "card-2"}, false},
		{"income only", TransactionFilter{Type: TypeIncome}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(&tx); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	totals := ComputeTotals([]Transaction{
		{Type: TypeIncome, Amount: dec("5000")},
		{Type: TypeExpense, Amount: dec("1200"), Paid: true},
		{Type: TypeExpense, Amount: dec("300.50")},
	})
	if !totals.Income.Equal(dec("5000")) || !totals.Expense.Equal(dec("1500.50")) {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if !totals.Balance.Equal(dec("3499.50")) || !totals.Pending.Equal(dec("300.50")) {
		t.Fatalf("unexpected balance/pending %+v", totals)
	}
}
