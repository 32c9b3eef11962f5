package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodCash     = "dinheiro"
	MethodDebit    = "debito"
	MethodCredit   = "credito"
	MethodPix      = "pix"
	MethodBoleto   = "boleto"
	MethodTransfer = "transferencia"

	RecurrenceNone    = "nenhuma"
	RecurrenceWeekly  = "semanal"
	RecurrenceMonthly = "mensal"
	RecurrenceYearly  = "anual"

	ScopeSingle = "unica"
	ScopeFuture = "futuras"
	ScopeAll    = "todas"

	DefaultOccurrences = 12
)

// Transaction is a lançamento: one income or expense entry. Installment and
// recurring purchases are stored as one row per occurrence sharing a group id.
type Transaction struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	Type               string          `json:"type"`
	CategoryID         string          `json:"category_id"`
	PaymentMethod      string          `json:"payment_method"`
	Date               Date            `json:"date"`
	DueDate            *Date           `json:"due_date,omitempty"`
	Paid               bool            `json:"paid"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CardID             *string         `json:"card_id,omitempty"`
	InvoiceMonth       *Month          `json:"invoice_month,omitempty"`
	InstallmentGroupID *string         `json:"installment_group_id,omitempty"`
	InstallmentNumber  *int            `json:"installment_number,omitempty"`
	InstallmentTotal   *int            `json:"installment_total,omitempty"`
	RecurrenceGroupID  *string         `json:"recurrence_group_id,omitempty"`
	Recurrence         string          `json:"recurrence"`
	Shared             bool            `json:"shared"`
	SplitMode          string          `json:"split_mode,omitempty"`
	SplitValue         decimal.Decimal `json:"split_value"`
	Splits             []Split         `json:"splits,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsCardPurchase reports whether the row is billed through a card invoice.
func (t *Transaction) IsCardPurchase() bool {
	return t.CardID != nil && t.InvoiceMonth != nil
}

// GroupID returns the installment or recurrence group the row belongs to, if any.
func (t *Transaction) GroupID() string {
	if t.InstallmentGroupID != nil {
		return *t.InstallmentGroupID
	}
	if t.RecurrenceGroupID != nil {
		return *t.RecurrenceGroupID
	}
	return ""
}

// VisibleTo reports whether userID may read the row: the owner always, the
// partner only when the row is shared with them.
func (t *Transaction) VisibleTo(userID string) bool {
	if t.UserID == userID {
		return true
	}
	if !t.Shared {
		return false
	}
	for _, s := range t.Splits {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// SplitOf returns the split that belongs to userID.
func (t *Transaction) SplitOf(userID string) *Split {
	for i := range t.Splits {
		if t.Splits[i].UserID == userID {
			return &t.Splits[i]
		}
	}
	return nil
}

type TransactionRequest struct {
	Description   string          `json:"description" binding:"required,max=200"`
	Amount        decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Type          string          `json:"type" binding:"required,oneof=receita despesa"`
	CategoryID    string          `json:"category_id" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=dinheiro debito credito pix boleto transferencia"`
	Date          Date            `json:"date"`
	DueDate       *Date           `json:"due_date"`
	Paid          bool            `json:"paid"`
	CardID        *string         `json:"card_id"`
	Installments  int             `json:"installments" binding:"omitempty,min=2,max=72"`
	Recurrence    string          `json:"recurrence" binding:"omitempty,oneof=nenhuma semanal mensal anual"`
	Occurrences   int             `json:"occurrences" binding:"omitempty,min=2,max=60"`
	Shared        bool            `json:"shared"`
	SplitMode     string          `json:"split_mode" binding:"omitempty,oneof=igual valor percentual"`
	SplitValue    decimal.Decimal `json:"split_value" binding:"omitempty,gte=0"`
	Notes         string          `json:"notes" binding:"max=500"`
}

// Normalize applies defaults and checks the rules that span several fields.
func (r *TransactionRequest) Normalize() error {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return NewValidationError("description", "cannot be empty")
	}
	if err := validMoney("amount", r.Amount); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return NewValidationError("date", "is required")
	}
	if r.Recurrence == "" {
		r.Recurrence = RecurrenceNone
	}
	if r.PaymentMethod == MethodCredit {
		if r.CardID == nil || *r.CardID == "" {
			return NewValidationError("card_id", "is required for credit purchases")
		}
	} else {
		r.CardID = nil
		if r.Installments > 0 {
			return NewValidationError("installments", "only credit purchases can be paid in installments")
		}
	}
	if r.Installments > 0 && r.Recurrence != RecurrenceNone {
		return NewValidationError("recurrence", "cannot be combined with installments")
	}
	if r.Recurrence != RecurrenceNone && r.Occurrences == 0 {
		r.Occurrences = DefaultOccurrences
	}
	if r.Shared {
		if r.Type != TypeExpense {
			return NewValidationError("shared", "only expenses can be shared")
		}
		if r.SplitMode == "" {
			r.SplitMode = SplitEqual
		}
	} else {
		r.SplitMode = ""
		r.SplitValue = decimal.Zero
	}
	return nil
}

// BuildTransactions expands a create request into the rows to store: one row, one
// per installment, or one per recurrence. Installment amounts are the total divided
// evenly, with the leftover cents on the first installment. card must be set for
// credit purchases. newID supplies row and group identifiers.
func BuildTransactions(req TransactionRequest, userID string, card *Card, now time.Time, newID func() string) []Transaction {
	base := Transaction{
		UserID:        userID,
		Description:   req.Description,
		Amount:        RoundMoney(req.Amount),
		Type:          req.Type,
		CategoryID:    req.CategoryID,
		PaymentMethod: req.PaymentMethod,
		Date:          req.Date,
		DueDate:       req.DueDate,
		Paid:          req.Paid,
		Recurrence:    req.Recurrence,
		Shared:        req.Shared,
		SplitMode:     req.SplitMode,
		SplitValue:    req.SplitValue,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if card != nil {
		id := card.ID
		base.CardID = &id
		base.Paid = false
	}

	var rows []Transaction
	switch {
	case req.Installments > 1:
		group := newID()
		amounts := SplitEvenly(base.Amount, req.Installments)
		var splitValues []decimal.Decimal
		if req.Shared && req.SplitMode == SplitValue {
			splitValues = SplitEvenly(req.SplitValue, req.Installments)
		}
		firstInvoice := card.InvoiceMonthFor(req.Date)
		for i := 0; i < req.Installments; i++ {
			row := base
			row.Amount = amounts[i]
			row.Date = req.Date.AddMonths(i)
			g, n, total := group, i+1, req.Installments
			row.InstallmentGroupID, row.InstallmentNumber, row.InstallmentTotal = &g, &n, &total
			if splitValues != nil {
				row.SplitValue = splitValues[i]
			}
			applyInvoice(&row, card, firstInvoice.Add(i))
			rows = append(rows, row)
		}
	case req.Recurrence != RecurrenceNone:
		group := newID()
		for i := 0; i < req.Occurrences; i++ {
			row := base
			row.Date = recurrenceDate(req.Date, req.Recurrence, i)
			if req.DueDate != nil {
				due := recurrenceDate(*req.DueDate, req.Recurrence, i)
				row.DueDate = &due
			}
			g := group
			row.RecurrenceGroupID = &g
			if i > 0 && card == nil {
				row.Paid = false
			}
			if card != nil {
				applyInvoice(&row, card, card.InvoiceMonthFor(row.Date))
			}
			rows = append(rows, row)
		}
	default:
		row := base
		if card != nil {
			applyInvoice(&row, card, card.InvoiceMonthFor(row.Date))
		}
		rows = append(rows, row)
	}

	for i := range rows {
		rows[i].ID = newID()
		if rows[i].Paid {
			paidAt := now
			rows[i].PaidAt = &paidAt
		}
	}
	return rows
}

func applyInvoice(t *Transaction, card *Card, m Month) {
	month := m
	due := card.DueDate(m)
	t.InvoiceMonth = &month
	t.DueDate = &due
}

func recurrenceDate(start Date, recurrence string, i int) Date {
	switch recurrence {
	case RecurrenceWeekly:
		return start.AddDays(7 * i)
	case RecurrenceYearly:
		return start.AddMonths(12 * i)
	default:
		return start.AddMonths(i)
	}
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	UserID string
	// IncludeShared adds rows owned by the partner that are shared with UserID.
	IncludeShared bool
	SharedOnly    bool
	Month         *Month
	// From and To bound the row date, inclusive.
	From *Date
	To   *Date
	// ByInvoice matches card purchases by invoice month instead of date.
	ByInvoice    bool
	InvoiceMonth *Month
	Type         string
	CategoryID   string
	CardID       string
	GroupID      string
	Paid         *bool
	Search       string
	DueFrom      *Date
	DueTo        *Date
	Limit        int
}

// Matches applies the filter to a single row. The memory repository uses it and
// it documents what the SQL version has to do.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		if !f.IncludeShared || !t.VisibleTo(f.UserID) {
			return false
		}
	}
	if f.SharedOnly && !t.Shared {
		return false
	}
	if f.Month != nil {
		if f.ByInvoice && t.InvoiceMonth != nil {
			if *t.InvoiceMonth != *f.Month {
				return false
			}
		} else if !f.Month.Contains(t.Date) {
			return false
		}
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	if f.InvoiceMonth != nil && (t.InvoiceMonth == nil || *t.InvoiceMonth != *f.InvoiceMonth) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.CardID != "" && (t.CardID == nil || *t.CardID != f.CardID) {
		return false
	}
	if f.GroupID != "" && t.GroupID() != f.GroupID {
		return false
	}
	if f.Paid != nil && t.Paid != *f.Paid {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	return true
}

type TransactionTotals struct {
	Income  decimal.Decimal `json:"receitas"`
	Expense decimal.Decimal `json:"despesas"`
	Balance decimal.Decimal `json:"saldo"`
	Pending decimal.Decimal `json:"pendente"`
}

// ComputeTotals sums incomes and expenses. Pending is what is still unpaid on the
// expense side.
func ComputeTotals(txs []Transaction) TransactionTotals {
	totals := TransactionTotals{Income: decimal.Zero, Expense: decimal.Zero, Pending: decimal.Zero}
	for _, t := range txs {
		if t.Type == TypeIncome {
			totals.Income = totals.Income.Add(t.Amount)
			continue
		}
		totals.Expense = totals.Expense.Add(t.Amount)
		if !t.Paid {
			totals.Pending = totals.Pending.Add(t.Amount)
		}
	}
	totals.Balance = totals.Income.Sub(totals.Expense)
	return totals
}

type TransactionList struct {
	Items  []Transaction     `json:"items"`
	Totals TransactionTotals `json:"totals"`
}

type SetPaidRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}
