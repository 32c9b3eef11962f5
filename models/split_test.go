package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputeSplits(t *testing.T) {
	cases := []struct {
		name        string
		amount      string
		mode        string
		value       string
		wantPartner string
		wantErr     bool
	}{
		{"equal even", "100", SplitEqual, "0", "50", false},
		{"equal odd cents go to payer", "10.01", SplitEqual, "0", "5", false},
		{"default mode is equal", "9.99", "", "0", "4.99", false},
		{"fixed value", "100", SplitValue, "30", "30", false},
		{"fixed value equal to amount", "100", SplitValue, "100", "100", false},
		{"fixed value too large", "100", SplitValue, "100.01", "", true},
		{"fixed value zero", "100", SplitValue, "0", "", true},
		{"percent", "100", SplitPercent, "25", "25", false},
		{"percent rounds to cents", "10", SplitPercent, "33.333", "3.33", false},
		{"percent over 100", "100", SplitPercent, "101", "", true},
		{"unknown mode", "100", "metade", "0", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			splits, err := ComputeSplits(dec(tc.amount), "payer", "partner", tc.mode, dec(tc.value))
			if tc.wantErr {
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(splits) != 2 {
				t.Fatalf("expected 2 splits, got %d", len(splits))
			}
			payer, partner := splits[0], splits[1]
			if payer.UserID != "payer" || partner.UserID != "partner" {
				t.Fatalf("unexpected split owners %+v", splits)
			}
			if !partner.Amount.Equal(dec(tc.wantPartner)) {
				t.Fatalf("expected partner share %s, got %s", tc.wantPartner, partner.Amount)
			}
			if !payer.Amount.Add(partner.Amount).Equal(dec(tc.amount)) {
				t.Fatalf("shares %s + %s do not add up to %s", payer.Amount, partner.Amount, tc.amount)
			}
			if !payer.Paid || !payer.PaidAmount.Equal(payer.Amount) {
				t.Fatal("payer split must be born paid")
			}
			if partner.Amount.IsPositive() && partner.Paid {
				t.Fatal("partner split must start unpaid")
			}
		})
	}
}

func TestSplitPay(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Split{UserID: "partner", Amount: dec("50"), PaidAmount: decimal.Zero}

	if _, err := s.Pay(dec("60"), now); !IsValidation(err) {
		t.Fatalf("expected overpay to be rejected, got %v", err)
	}
	paid, err := s.Pay(dec("20"), now)
	if err != nil {
		t.Fatal(err)
	}
	if !paid.Equal(dec("20")) || s.Paid {
		t.Fatalf("partial payment went wrong: paid=%s split=%+v", paid, s)
	}
	paid, err = s.Pay(decimal.Zero, now)
	if err != nil {
		t.Fatal(err)
	}
	if !paid.Equal(dec("30")) || !s.Paid || s.PaidAt == nil {
		t.Fatalf("paying the rest should settle the split: paid=%s split=%+v", paid, s)
	}
	if _, err := s.Pay(dec("1"), now); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on a paid split, got %v", err)
	}
}

func TestSplitPayRecordsRoundedAmount(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		amount string
		want   string
		paid   bool
	}{
		{"rounds down", "10.333", "10.33", false},
		{"rounds up", "10.337", "10.34", false},
		{"rounds to the remaining share", "49.999", "50", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Split{UserID: "partner", Amount: dec("50"), PaidAmount: decimal.Zero}
			got, err := s.Pay(dec(tt.amount), now)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(dec(tt.want)) || !s.PaidAmount.Equal(got) {
				t.Fatalf("returned %s, recorded %s, want %s", got, s.PaidAmount, tt.want)
			}
			if s.Paid != tt.paid {
				t.Fatalf("paid = %v, want %v", s.Paid, tt.paid)
			}
		})
	}

	s := Split{UserID: "partner", Amount: dec("50"), PaidAmount: decimal.Zero}
	if _, err := s.Pay(dec("0.004"), now); !IsValidation(err) {
		t.Fatalf("an amount that rounds to zero is rejected, got %v", err)
	}
}

func TestCarryPayments(t *testing.T) {
	old := []Split{
		{ID: "s1", TransactionID: "t1", UserID: "payer", Amount: dec("50"), PaidAmount: dec("50"), Paid: true},
		{ID: "s2", TransactionID: "t1", UserID: "partner", Amount: dec("50"), PaidAmount: dec("40")},
	}

	shrunk, _ := ComputeSplits(dec("60"), "payer", "partner", SplitEqual, decimal.Zero)
	got := CarryPayments(old, shrunk, "payer")
	if got[0].ID != "s1" || got[1].ID != "s2" || got[1].TransactionID != "t1" {
		t.Fatalf("split ids not kept: %+v", got)
	}
	if !got[1].Amount.Equal(dec("30")) || !got[1].PaidAmount.Equal(dec("30")) || !got[1].Paid {
		t.Fatalf("partner payment should be capped at the new share: %+v", got[1])
	}
	if !got[0].Paid || !got[0].PaidAmount.Equal(dec("30")) {
		t.Fatalf("payer split should stay fully paid: %+v", got[0])
	}

	grown, _ := ComputeSplits(dec("200"), "payer", "partner", SplitEqual, decimal.Zero)
	got = CarryPayments(old, grown, "payer")
	if !got[1].PaidAmount.Equal(dec("40")) || got[1].Paid {
		t.Fatalf("partner payment should carry over unpaid: %+v", got[1])
	}
}

func TestSummarizeShared(t *testing.T) {
	txs := []Transaction{
		{
			ID: "t1", UserID: "ana", Shared: true, Amount: dec("100"),
			Splits: []Split{
				{UserID: "ana", Amount: dec("50"), PaidAmount: dec("50"), Paid: true},
				{UserID: "bia", Amount: dec("50"), PaidAmount: dec("10")},
			},
		},
		{
			ID: "t2", UserID: "bia", Shared: true, Amount: dec("30"),
			Splits: []Split{
				{UserID: "bia", Amount: dec("15"), PaidAmount: dec("15"), Paid: true},
				{UserID: "ana", Amount: dec("15"), PaidAmount: decimal.Zero},
			},
		},
		{
			ID: "t3", UserID: "ana", Shared: true, Amount: dec("20"),
			Splits: []Split{
				{UserID: "ana", Amount: dec("10"), PaidAmount: dec("10"), Paid: true},
				{UserID: "bia", Amount: dec("10"), PaidAmount: dec("10"), Paid: true},
			},
		},
		{ID: "t4", UserID: "ana", Amount: dec("999")},
	}

	summary := SummarizeShared(txs, "ana")
	if len(summary.Items) != 3 {
		t.Fatalf("expected 3 shared items, got %d", len(summary.Items))
	}
	b := summary.Balance
	if !b.OwedToMe.Equal(dec("40")) || !b.IOwe.Equal(dec("15")) || !b.Net.Equal(dec("25")) {
		t.Fatalf("unexpected balance %+v", b)
	}
	if b.PendingCount != 2 || b.PaidCount != 1 {
		t.Fatalf("unexpected counts %+v", b)
	}
	if !summary.Items[1].MyShare.Equal(dec("15")) || summary.Items[1].PaidBy != "bia" {
		t.Fatalf("unexpected item %+v", summary.Items[1])
	}

	mirror := SummarizeShared(txs, "bia")
	if !mirror.Balance.Net.Equal(dec("-25")) {
		t.Fatalf("partner should see the opposite net, got %s", mirror.Balance.Net)
	}
}
