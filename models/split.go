package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SplitEqual   = "igual"
	SplitValue   = "valor"
	SplitPercent = "percentual"
)

// Split is one user's share of a shared transaction.
type Split struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Paid          bool            `json:"paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

func (s *Split) Remaining() decimal.Decimal {
	return s.Amount.Sub(s.PaidAmount)
}

// ComputeSplits divides amount between the payer and the partner. The payer's
// share is born paid since the payer settled the purchase. The two shares always
// add up to amount.
func ComputeSplits(amount decimal.Decimal, payerID, partnerID, mode string, value decimal.Decimal) ([]Split, error) {
	amount = RoundMoney(amount)
	var partnerShare decimal.Decimal
	switch mode {
	case SplitEqual, "":
		partnerShare = FloorMoney(amount.Div(decimal.NewFromInt(2)))
	case SplitValue:
		if !value.IsPositive() || value.GreaterThan(amount) {
			return nil, NewValidationError("split_value", "partner amount must be greater than zero and at most the transaction amount")
		}
		partnerShare = RoundMoney(value)
	case SplitPercent:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return nil, NewValidationError("split_value", "partner percent must be in (0, 100]")
		}
		partnerShare = RoundMoney(amount.Mul(value).Div(hundred))
	default:
		return nil, NewValidationError("split_mode", "unknown split mode %q", mode)
	}
	payerShare := amount.Sub(partnerShare)
	return []Split{
		{UserID: payerID, Amount: payerShare, PaidAmount: payerShare, Paid: true},
		{UserID: partnerID, Amount: partnerShare, PaidAmount: decimal.Zero, Paid: partnerShare.IsZero()},
	}, nil
}

// CarryPayments moves payment progress from old splits onto recomputed ones.
// Split IDs are kept per user and the debtor's paid amount is capped at the new
// share. The payer's split stays fully paid.
func CarryPayments(old, recomputed []Split, payerID string) []Split {
	out := make([]Split, len(recomputed))
	for i, s := range recomputed {
		for _, o := range old {
			if o.UserID != s.UserID {
				continue
			}
			s.ID, s.TransactionID = o.ID, o.TransactionID
			if s.UserID != payerID {
				s.PaidAmount = decimal.Min(o.PaidAmount, s.Amount)
				s.Paid = s.PaidAmount.Equal(s.Amount)
				if s.Paid {
					s.PaidAt = o.PaidAt
				}
			}
			break
		}
		out[i] = s
	}
	return out
}

// Pay applies a payment to the split. A zero amount pays whatever is left.
func (s *Split) Pay(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if s.Paid {
		return decimal.Zero, ErrConflict
	}
	remaining := s.Remaining()
	if amount.IsZero() {
		amount = remaining
	}
	amount = RoundMoney(amount)
	if !amount.IsPositive() {
		return decimal.Zero, NewValidationError("amount", "must be greater than zero")
	}
	if amount.GreaterThan(remaining) {
		return decimal.Zero, NewValidationError("amount", "exceeds the remaining share of %s", remaining.StringFixed(2))
	}
	s.PaidAmount = s.PaidAmount.Add(amount)
	s.Paid = s.PaidAmount.Equal(s.Amount)
	if s.Paid {
		s.PaidAt = &now
	}
	return amount, nil
}

type SharedItem struct {
	Transaction  Transaction     `json:"transaction"`
	MyShare      decimal.Decimal `json:"my_share"`
	PartnerShare decimal.Decimal `json:"partner_share"`
	PaidBy       string          `json:"paid_by"`
	// Pending is what is still owed on the debtor's split, seen from either side.
	Pending decimal.Decimal `json:"pending"`
}

type SharedBalance struct {
	OwedToMe     decimal.Decimal `json:"owed_to_me"`
	IOwe         decimal.Decimal `json:"i_owe"`
	Net          decimal.Decimal `json:"net"`
	PendingCount int             `json:"pending_count"`
	PaidCount    int             `json:"paid_count"`
}

type SharedSummary struct {
	Items   []SharedItem  `json:"items"`
	Balance SharedBalance `json:"balance"`
}

// SummarizeShared builds the compartilhado view for userID. Net is positive when
// the partner owes the user.
func SummarizeShared(txs []Transaction, userID string) SharedSummary {
	summary := SharedSummary{
		Items: []SharedItem{},
		Balance: SharedBalance{
			OwedToMe: decimal.Zero,
			IOwe:     decimal.Zero,
			Net:      decimal.Zero,
		},
	}
	for _, t := range txs {
		if !t.Shared {
			continue
		}
		item := SharedItem{Transaction: t, MyShare: decimal.Zero, PartnerShare: decimal.Zero, Pending: decimal.Zero, PaidBy: t.UserID}
		pending := false
		for _, s := range t.Splits {
			if s.UserID == userID {
				item.MyShare = s.Amount
			} else {
				item.PartnerShare = s.Amount
			}
			if s.UserID == t.UserID {
				continue
			}
			// s is the debtor's split.
			item.Pending = s.Remaining()
			if s.Paid {
				continue
			}
			pending = true
			if t.UserID == userID {
				summary.Balance.OwedToMe = summary.Balance.OwedToMe.Add(s.Remaining())
			} else if s.UserID == userID {
				summary.Balance.IOwe = summary.Balance.IOwe.Add(s.Remaining())
			}
		}
		if pending {
			summary.Balance.PendingCount++
		} else {
			summary.Balance.PaidCount++
		}
		summary.Items = append(summary.Items, item)
	}
	summary.Balance.Net = summary.Balance.OwedToMe.Sub(summary.Balance.IOwe)
	return summary
}

type PaySplitRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"omitempty,gte=0"`
}

type SettleRequest struct {
	Month string `json:"mes" binding:"required,yearmonth"`
}

type SettleResult struct {
	Month   Month           `json:"mes"`
	Settled int             `json:"settled"`
	Net     decimal.Decimal `json:"net"`
}
