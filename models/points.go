package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PointsEarned   = "acumulo"
	PointsRedeemed = "resgate"
	PointsExpired  = "expiracao"
)

var thousand = decimal.NewFromInt(1000)

// PointEntry is one movement in a loyalty program.
type PointEntry struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Program         string              `json:"program"`
	Quantity        int64               `json:"quantity"`
	Type            string              `json:"type"`
	RedemptionValue decimal.NullDecimal `json:"redemption_value"`
	Date            Date                `json:"date"`
	Description     string              `json:"description,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Signed returns the quantity with the sign it has on the balance.
func (p *PointEntry) Signed() int64 {
	if p.Type == PointsEarned {
		return p.Quantity
	}
	return -p.Quantity
}

type PointEntryRequest struct {
	Program         string              `json:"program" binding:"required,max=60"`
	Quantity        int64               `json:"quantity" binding:"required,gt=0"`
	Type            string              `json:"type" binding:"required,oneof=acumulo resgate expiracao"`
	RedemptionValue decimal.NullDecimal `json:"redemption_value"`
	Date            Date                `json:"date"`
	Description     string              `json:"description" binding:"max=200"`
}

func (r *PointEntryRequest) Normalize(today Date) error {
	r.Program = strings.TrimSpace(r.Program)
	if r.Program == "" {
		return NewValidationError("program", "cannot be empty")
	}
	if r.Quantity <= 0 {
		return NewValidationError("quantity", "must be greater than zero")
	}
	if r.Type != PointsRedeemed {
		r.RedemptionValue = decimal.NullDecimal{}
	} else if r.RedemptionValue.Valid {
		if r.RedemptionValue.Decimal.IsNegative() {
			return NewValidationError("redemption_value", "cannot be negative")
		}
		r.RedemptionValue.Decimal = RoundMoney(r.RedemptionValue.Decimal)
	}
	if r.Date.IsZero() {
		r.Date = today
	}
	r.Description = strings.TrimSpace(r.Description)
	return nil
}

type PointsBalance struct {
	Program             string          `json:"program"`
	Earned              int64           `json:"earned"`
	Redeemed            int64           `json:"redeemed"`
	Expired             int64           `json:"expired"`
	Balance             int64           `json:"balance"`
	AvgValuePerThousand decimal.Decimal `json:"avg_value_per_thousand"`
	redemptionValue     decimal.Decimal
}

// ComputeBalances aggregates entries per program, ordered by program name.
// Programs are matched case-insensitively and keep the first spelling seen.
func ComputeBalances(entries []PointEntry) []PointsBalance {
	byKey := map[string]*PointsBalance{}
	var keys []string
	for _, e := range entries {
		key := strings.ToLower(e.Program)
		b, ok := byKey[key]
		if !ok {
			b = &PointsBalance{Program: e.Program, redemptionValue: decimal.Zero}
			byKey[key] = b
			keys = append(keys, key)
		}
		switch e.Type {
		case PointsEarned:
			b.Earned += e.Quantity
		case PointsRedeemed:
			b.Redeemed += e.Quantity
			if e.RedemptionValue.Valid {
				b.redemptionValue = b.redemptionValue.Add(e.RedemptionValue.Decimal)
			}
		case PointsExpired:
			b.Expired += e.Quantity
		}
	}
	sort.Strings(keys)
	out := make([]PointsBalance, 0, len(keys))
	for _, k := range keys {
		b := byKey[k]
		b.Balance = b.Earned - b.Redeemed - b.Expired
		b.AvgValuePerThousand = decimal.Zero
		if b.Redeemed > 0 {
			b.AvgValuePerThousand = RoundMoney(b.redemptionValue.Mul(thousand).Div(decimal.NewFromInt(b.Redeemed)))
		}
		out = append(out, *b)
	}
	return out
}

// BalanceOf returns the current balance of program in entries.
func BalanceOf(entries []PointEntry, program string) int64 {
	var balance int64
	for _, e := range entries {
		if strings.EqualFold(e.Program, program) {
			balance += e.Signed()
		}
	}
	return balance
}

type PointsList struct {
	Items    []PointEntry    `json:"items"`
	Balances []PointsBalance `json:"balances"`
}
