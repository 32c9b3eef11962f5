package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceOpen    = "aberta"
	InvoiceClosed  = "fechada"
	InvoicePartial = "parcial"
	InvoicePaid    = "paga"
	InvoiceOverdue = "vencida"
)

// Invoice is the stored part of a fatura: manual closing and the payments made
// against it. Totals are always derived from the card's transactions.
type Invoice struct {
	ID             string     `json:"id"`
	CardID         string     `json:"card_id"`
	ReferenceMonth Month      `json:"reference_month"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type InvoicePayment struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    Date            `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

type InvoiceDetail struct {
	ID             string           `json:"id,omitempty"`
	CardID         string           `json:"card_id"`
	ReferenceMonth Month            `json:"reference_month"`
	ClosingDate    Date             `json:"closing_date"`
	DueDate        Date             `json:"due_date"`
	Total          decimal.Decimal  `json:"total"`
	PaidAmount     decimal.Decimal  `json:"paid_amount"`
	Remaining      decimal.Decimal  `json:"remaining"`
	Status         string           `json:"status"`
	ManuallyClosed bool             `json:"manually_closed"`
	Transactions   []Transaction    `json:"transactions"`
	Payments       []InvoicePayment `json:"payments"`
}

// BuildInvoice derives the fatura of card for month m from the rows billed in it.
// stored may be nil when nothing was ever paid or closed.
func BuildInvoice(card *Card, m Month, txs []Transaction, stored *Invoice, payments []InvoicePayment, today Date) InvoiceDetail {
	detail := InvoiceDetail{
		CardID:         card.ID,
		ReferenceMonth: m,
		ClosingDate:    card.ClosingDate(m),
		DueDate:        card.DueDate(m),
		Total:          decimal.Zero,
		PaidAmount:     decimal.Zero,
		Transactions:   []Transaction{},
		Payments:       []InvoicePayment{},
	}
	if stored != nil {
		detail.ID = stored.ID
		detail.ManuallyClosed = stored.ClosedAt != nil
	}
	for _, t := range txs {
		if t.CardID == nil || *t.CardID != card.ID || t.InvoiceMonth == nil || *t.InvoiceMonth != m {
			continue
		}
		if t.Type == TypeExpense {
			detail.Total = detail.Total.Add(t.Amount)
		} else {
			detail.Total = detail.Total.Sub(t.Amount)
		}
		detail.Transactions = append(detail.Transactions, t)
	}
	sort.SliceStable(detail.Transactions, func(i, j int) bool {
		return detail.Transactions[i].Date.Before(detail.Transactions[j].Date)
	})
	for _, p := range payments {
		detail.PaidAmount = detail.PaidAmount.Add(p.Amount)
		detail.Payments = append(detail.Payments, p)
	}
	detail.Remaining = decimal.Max(decimal.Zero, detail.Total.Sub(detail.PaidAmount))
	detail.Status = invoiceStatus(detail, today)
	return detail
}

func invoiceStatus(d InvoiceDetail, today Date) string {
	closed := d.ManuallyClosed || !today.Before(d.ClosingDate)
	switch {
	case d.Total.IsPositive() && !d.PaidAmount.LessThan(d.Total):
		return InvoicePaid
	case !d.Total.IsPositive() && closed:
		return InvoicePaid
	case !closed:
		return InvoiceOpen
	case today.After(d.DueDate):
		return InvoiceOverdue
	case d.PaidAmount.IsPositive():
		return InvoicePartial
	default:
		return InvoiceClosed
	}
}

// IsSettled reports whether the invoice no longer expects payments.
func (d InvoiceDetail) IsSettled() bool {
	return d.Status == InvoicePaid
}

type InvoicePaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,gt=0"`
	PaidAt Date            `json:"paid_at"`
}

// InvoiceSummary is the list view of a fatura.
type InvoiceSummary struct {
	ReferenceMonth Month           `json:"reference_month"`
	ClosingDate    Date            `json:"closing_date"`
	DueDate        Date            `json:"due_date"`
	Total          decimal.Decimal `json:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Status         string          `json:"status"`
	Count          int             `json:"count"`
}

func (d InvoiceDetail) Summary() InvoiceSummary {
	return InvoiceSummary{
		ReferenceMonth: d.ReferenceMonth,
		ClosingDate:    d.ClosingDate,
		DueDate:        d.DueDate,
		Total:          d.Total,
		PaidAmount:     d.PaidAmount,
		Status:         d.Status,
		Count:          len(d.Transactions),
	}
}
