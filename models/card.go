package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Card struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand"`
	Limit          decimal.Decimal `json:"limit"`
	Color          string          `json:"color"`
	ClosingDay     int             `json:"closing_day"`
	DueDay         int             `json:"due_day"`
	AvailableLimit decimal.Decimal `json:"available_limit"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CardRequest struct {
	Name       string          `json:"name" binding:"required,max=60"`
	Brand      string          `json:"brand" binding:"max=30"`
	Limit      decimal.Decimal `json:"limit" binding:"gte=0"`
	Color      string          `json:"color"`
	ClosingDay int             `json:"closing_day" binding:"required,min=1,max=28"`
	DueDay     int             `json:"due_day" binding:"required,min=1,max=28"`
}

func (r *CardRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return NewValidationError("name", "cannot be empty")
	}
	if r.Limit.IsNegative() {
		return NewValidationError("limit", "cannot be negative")
	}
	if r.Color == "" {
		r.Color = DefaultCategoryColor
	}
	if !hexColor.MatchString(r.Color) {
		return NewValidationError("color", "must be a #RRGGBB hex color")
	}
	if r.ClosingDay < 1 || r.ClosingDay > 28 {
		return NewValidationError("closing_day", "must be between 1 and 28")
	}
	if r.DueDay < 1 || r.DueDay > 28 {
		return NewValidationError("due_day", "must be between 1 and 28")
	}
	return nil
}

// InvoiceMonthFor returns the invoice a purchase made on d is billed in. Purchases
// on or after the closing day roll over to the next month's invoice.
func (c *Card) InvoiceMonthFor(d Date) Month {
	m := d.YearMonth()
	if d.Day() >= c.ClosingDay {
		return m.Add(1)
	}
	return m
}

// ClosingDate is the day the invoice of month m stops taking purchases.
func (c *Card) ClosingDate(m Month) Date {
	return m.Day(c.ClosingDay)
}

// DueDate is the payment deadline of the invoice of month m. A due day that does
// not come after the closing day falls in the following month.
func (c *Card) DueDate(m Month) Date {
	if c.DueDay > c.ClosingDay {
		return m.Day(c.DueDay)
	}
	return m.Add(1).Day(c.DueDay)
}

// ComputeAvailableLimit subtracts unpaid card expenses from the limit. Unpaid
// credits (refunds) give limit back.
func (c *Card) ComputeAvailableLimit(txs []Transaction) decimal.Decimal {
	used := decimal.Zero
	for _, t := range txs {
		if t.CardID == nil || *t.CardID != c.ID || t.Paid {
			continue
		}
		if t.Type == TypeExpense {
			used = used.Add(t.Amount)
		} else {
			used = used.Sub(t.Amount)
		}
	}
	return c.Limit.Sub(used)
}

// Rebill recomputes the invoice of every unpaid purchase after a change of the
// billing days and returns the rows that moved. Paid rows stay on the invoice
// that settled them.
func (c *Card) Rebill(txs []Transaction) []Transaction {
	var moved []Transaction
	for _, t := range txs {
		if t.CardID == nil || *t.CardID != c.ID || t.Paid {
			continue
		}
		m := c.InvoiceMonthFor(t.Date)
		due := c.DueDate(m)
		if t.InvoiceMonth != nil && *t.InvoiceMonth == m && t.DueDate != nil && *t.DueDate == due {
			continue
		}
		t.InvoiceMonth, t.DueDate = &m, &due
		moved = append(moved, t)
	}
	return moved
}
