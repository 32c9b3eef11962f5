package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/utils"
)

const transactionColumns = `t.id, t.user_id, t.description, t.amount, t.type, t.category_id, t.payment_method,
	t.date, t.due_date, t.paid, t.paid_at, t.card_id, t.invoice_month, t.installment_group_id,
	t.installment_number, t.installment_total, t.recurrence_group_id, t.recurrence, t.shared,
	t.split_mode, t.split_value, t.notes, t.created_at, t.updated_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &t.Type, &t.CategoryID, &t.PaymentMethod,
		&t.Date, &t.DueDate, &t.Paid, &t.PaidAt, &t.CardID, &t.InvoiceMonth, &t.InstallmentGroupID,
		&t.InstallmentNumber, &t.InstallmentTotal, &t.RecurrenceGroupID, &t.Recurrence, &t.Shared,
		&t.SplitMode, &t.SplitValue, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// whereBuilder collects conditions and numbers their placeholders.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, args ...interface{}) {
	for range args {
		w.args = append(w.args, nil)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	copy(w.args[len(w.args)-len(args):], args)
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func transactionWhere(f models.TransactionFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.UserID != "" {
		if f.IncludeShared {
			w.add(`(t.user_id = ? OR (t.shared AND EXISTS (
				SELECT 1 FROM transaction_splits s WHERE s.transaction_id = t.id AND s.user_id = ?)))`, f.UserID, f.UserID)
		} else {
			w.add(`t.user_id = ?`, f.UserID)
		}
	}
	if f.SharedOnly {
		w.add(`t.shared`)
	}
	if f.Month != nil {
		first, last := f.Month.First(), f.Month.Last()
		if f.ByInvoice {
			w.add(`((t.invoice_month IS NOT NULL AND t.invoice_month = ?) OR (t.invoice_month IS NULL AND t.date BETWEEN ? AND ?))`,
				*f.Month, first, last)
		} else {
			w.add(`t.date BETWEEN ? AND ?`, first, last)
		}
	}
	if f.From != nil {
		w.add(`t.date >= ?`, *f.From)
	}
	if f.To != nil {
		w.add(`t.date <= ?`, *f.To)
	}
	if f.InvoiceMonth != nil {
		w.add(`t.invoice_month = ?`, *f.InvoiceMonth)
	}
	if f.Type != "" {
		w.add(`t.type = ?`, f.Type)
	}
	if f.CategoryID != "" {
		w.add(`t.category_id = ?`, f.CategoryID)
	}
	if f.CardID != "" {
		w.add(`t.card_id = ?`, f.CardID)
	}
	if f.GroupID != "" {
		w.add(`(t.installment_group_id = ? OR t.recurrence_group_id = ?)`, f.GroupID, f.GroupID)
	}
	if f.Paid != nil {
		w.add(`t.paid = ?`, *f.Paid)
	}
	if f.Search != "" {
		w.add(`t.description ILIKE ?`, "%"+escapeLike(f.Search)+"%")
	}
	if f.DueFrom != nil {
		w.add(`t.due_date >= ?`, *f.DueFrom)
	}
	if f.DueTo != nil {
		w.add(`t.due_date <= ?`, *f.DueTo)
	}
	return w
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *Postgres) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	w := transactionWhere(f)
	query := `SELECT ` + transactionColumns + ` FROM transactions t ` + w.String() +
		` ORDER BY t.date DESC, t.created_at DESC, t.id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachSplits(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSplits loads the splits of the shared rows in one query.
func (p *Postgres) attachSplits(ctx context.Context, txs []models.Transaction) error {
	index := map[string]int{}
	var ids []string
	for i := range txs {
		if txs[i].Shared {
			index[txs[i].ID] = i
			ids = append(ids, txs[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, amount, paid_amount, paid, paid_at
		FROM transaction_splits WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, paid DESC, id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Split
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.UserID, &s.Amount, &s.PaidAmount, &s.Paid, &s.PaidAt); err != nil {
			return err
		}
		t := &txs[index[s.TransactionID]]
		t.Splits = append(t.Splits, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// The payer's split comes first.
	for _, i := range index {
		orderSplits(&txs[i])
	}
	return nil
}

func orderSplits(t *models.Transaction) {
	for i := range t.Splits {
		if t.Splits[i].UserID == t.UserID && i != 0 {
			t.Splits[0], t.Splits[i] = t.Splits[i], t.Splits[0]
			return
		}
	}
}

func (p *Postgres) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(p.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, id))
	if err != nil {
		return nil, err
	}
	txs := []models.Transaction{*t}
	if err := p.attachSplits(ctx, txs); err != nil {
		return nil, err
	}
	return &txs[0], nil
}

func insertTransaction(ctx context.Context, q queryer, t *models.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, description, amount, type, category_id, payment_method,
			date, due_date, paid, paid_at, card_id, invoice_month, installment_group_id,
			installment_number, installment_total, recurrence_group_id, recurrence, shared,
			split_mode, split_value, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`, t.ID, t.UserID, t.Description, t.Amount, t.Type, t.CategoryID, t.PaymentMethod,
		t.Date, t.DueDate, t.Paid, t.PaidAt, t.CardID, t.InvoiceMonth, t.InstallmentGroupID,
		t.InstallmentNumber, t.InstallmentTotal, t.RecurrenceGroupID, t.Recurrence, t.Shared,
		t.SplitMode, t.SplitValue, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return insertSplits(ctx, q, t.Splits)
}

func insertSplits(ctx context.Context, q queryer, splits []models.Split) error {
	for _, s := range splits {
		_, err := q.ExecContext(ctx, `
			INSERT INTO transaction_splits (id, transaction_id, user_id, amount, paid_amount, paid, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.ID, s.TransactionID, s.UserID, s.Amount, s.PaidAmount, s.Paid, s.PaidAt)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (p *Postgres) CreateTransactions(ctx context.Context, txs []models.Transaction) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		for i := range txs {
			if err := insertTransaction(ctx, tx, &txs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTransactions rewrites the rows and replaces their splits.
func (p *Postgres) UpdateTransactions(ctx context.Context, txs []models.Transaction) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		for _, t := range txs {
			err := expectRows(tx.ExecContext(ctx, `
				UPDATE transactions SET description = $2, amount = $3, type = $4, category_id = $5,
					payment_method = $6, date = $7, due_date = $8, paid = $9, paid_at = $10, card_id = $11,
					invoice_month = $12, shared = $13, split_mode = $14, split_value = $15, notes = $16,
					updated_at = $17
				WHERE id = $1
			`, t.ID, t.Description, t.Amount, t.Type, t.CategoryID, t.PaymentMethod, t.Date, t.DueDate,
				t.Paid, t.PaidAt, t.CardID, t.InvoiceMonth, t.Shared, t.SplitMode, t.SplitValue, t.Notes, t.UpdatedAt))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_splits WHERE transaction_id = $1`, t.ID); err != nil {
				return err
			}
			if err := insertSplits(ctx, tx, t.Splits); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func (p *Postgres) SetTransactionsPaid(ctx context.Context, ids []string, paid bool, at *time.Time) error {
	return setPaid(ctx, p.db, ids, paid, at)
}

func (p *Postgres) ClaimReminder(ctx context.Context, transactionID string, due models.Date, now time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO due_reminders (transaction_id, due_date, sent_at) VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id, due_date) DO NOTHING
	`, transactionID, due, now)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres) UpdateSplits(ctx context.Context, splits []models.Split) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		for _, s := range splits {
			err := expectRows(tx.ExecContext(ctx, `
				UPDATE transaction_splits SET paid_amount = $3, paid = $4, paid_at = $5
				WHERE id = $1 AND transaction_id = $2
			`, s.ID, s.TransactionID, s.PaidAmount, s.Paid, s.PaidAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
}
