package models

import (
	"testing"
	"time"
)

func mustMonth(t *testing.T, s string) Month {
	t.Helper()
	m, err := ParseMonth(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInvoiceMonthFor(t *testing.T) {
	card := &Card{ID: "c1", ClosingDay: 10, DueDay: 20}
	cases := []struct {
		date Date
		want string
	}{
		{NewDate(2024, time.March, 1), "2024-03"},
		{NewDate(2024, time.March, 9), "2024-03"},
		{NewDate(2024, time.March, 10), "2024-04"},
		{NewDate(2024, time.March, 31), "2024-04"},
		{NewDate(2024, time.December, 15), "2025-01"},
	}
	for _, tc := range cases {
		if got := card.InvoiceMonthFor(tc.date).String(); got != tc.want {
			t.Fatalf("%s: expected invoice %s, got %s", tc.date, tc.want, got)
		}
	}
}

func TestCardDueDate(t *testing.T) {
	m := mustMonth(t, "2024-03")

	sameMonth := &Card{ClosingDay: 10, DueDay: 20}
	if got := sameMonth.DueDate(m).String(); got != "2024-03-20" {
		t.Fatalf("expected 2024-03-20, got %s", got)
	}
	if got := sameMonth.ClosingDate(m).String(); got != "2024-03-10" {
		t.Fatalf("expected 2024-03-10, got %s", got)
	}

	nextMonth := &Card{ClosingDay: 25, DueDay: 5}
	if got := nextMonth.DueDate(m).String(); got != "2024-04-05" {
		t.Fatalf("expected 2024-04-05, got %s", got)
	}

	sameDay := &Card{ClosingDay: 10, DueDay: 10}
	if got := sameDay.DueDate(m).String(); got != "2024-04-10" {
		t.Fatalf("expected 2024-04-10, got %s", got)
	}
}

func TestComputeAvailableLimit(t *testing.T) {
	cardID := "c1"
	other := "c2"
	card := &Card{ID: cardID, Limit: dec("1000")}
	txs := []Transaction{
		{CardID: &cardID, Type: TypeExpense, Amount: dec("300")},
		{CardID: &cardID, Type: TypeExpense, Amount: dec("200"), Paid: true},
		{CardID: &cardID, Type: TypeIncome, Amount: dec("50")},
		{CardID: &other, Type: TypeExpense, Amount: dec("999")},
		{Type: TypeExpense, Amount: dec("10")},
	}
	if got := card.ComputeAvailableLimit(txs); !got.Equal(dec("750")) {
		t.Fatalf("expected 750, got %s", got)
	}
}

func TestCardRequestNormalize(t *testing.T) {
	req := CardRequest{Name: "  Nubank ", ClosingDay: 5, DueDay: 12}
	if err := req.Normalize(); err != nil {
		t.Fatal(err)
	}
	if req.Name != "Nubank" || req.Color != DefaultCategoryColor {
		t.Fatalf("unexpected normalized request %+v", req)
	}

	bad := CardRequest{Name: "x", ClosingDay: 30, DueDay: 5}
	if err := bad.Normalize(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad = CardRequest{Name: "x", ClosingDay: 5, DueDay: 5, Color: "red"}
	if err := bad.Normalize(); !IsValidation(err) {
		t.Fatalf("expected validation error for color, got %v", err)
	}
}

func TestCardRebill(t *testing.T) {
	cardID := "c1"
	m := mustMonth(t, "2024-03")
	due := NewDate(2024, time.March, 20)
	txs := []Transaction{
		{ID: "a", CardID: &cardID, Date: NewDate(2024, time.March, 7), InvoiceMonth: &m, DueDate: &due},
		{ID: "b", CardID: &cardID, Date: NewDate(2024, time.March, 2), InvoiceMonth: &m, DueDate: &due},
		{ID: "c", CardID: &cardID, Date: NewDate(2024, time.March, 8), InvoiceMonth: &m, DueDate: &due, Paid: true},
	}
	card := &Card{ID: cardID, ClosingDay: 5, DueDay: 20}
	moved := card.Rebill(txs)
	if len(moved) != 1 || moved[0].ID != "a" {
		t.Fatalf("expected only the unpaid row after the new closing day to move, got %+v", moved)
	}
	if moved[0].InvoiceMonth.String() != "2024-04" || moved[0].DueDate.String() != "2024-04-20" {
		t.Fatalf("unexpected new billing %s / %s", moved[0].InvoiceMonth, moved[0].DueDate)
	}
	if txs[0].InvoiceMonth.String() != "2024-03" {
		t.Fatal("input rows must not be modified")
	}
}
