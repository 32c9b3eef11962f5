package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/utils"
)

// ============================================================================
// CATEGORIES
// ============================================================================

const categoryColumns = `id, user_id, name, type, color, icon, created_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.Icon, &c.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func insertCategory(ctx context.Context, q queryer, c *models.Category) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.UserID, c.Name, c.Type, c.Color, c.Icon, c.CreatedAt)
	return mapError(err)
}

func (p *Postgres) ListCategories(ctx context.Context, userID, typ string) ([]models.Category, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1 AND ($2::text = '' OR type = $2)
		ORDER BY type, LOWER(name)
	`, userID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return scanCategory(p.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
}

func (p *Postgres) CreateCategory(ctx context.Context, c *models.Category) error {
	return insertCategory(ctx, p.db, c)
}

func (p *Postgres) UpdateCategory(ctx context.Context, c *models.Category) error {
	return expectRows(p.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, type = $3, color = $4, icon = $5 WHERE id = $1
	`, c.ID, c.Name, c.Type, c.Color, c.Icon))
}

// DeleteCategory fails with ErrConflict while transactions still use it.
func (p *Postgres) DeleteCategory(ctx context.Context, id string) error {
	return expectRows(p.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id))
}

// ============================================================================
// CARDS
// ============================================================================

const cardColumns = `id, user_id, name, brand, credit_limit, color, closing_day, due_day, created_at, updated_at`

func scanCard(row interface{ Scan(...interface{}) error }) (*models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Brand, &c.Limit, &c.Color, &c.ClosingDay, &c.DueDay, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (p *Postgres) listCards(ctx context.Context, query string, args ...interface{}) ([]models.Card, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (p *Postgres) ListCards(ctx context.Context, userID string) ([]models.Card, error) {
	return p.listCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (p *Postgres) ListAllCards(ctx context.Context) ([]models.Card, error) {
	return p.listCards(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY created_at, id`)
}

func (p *Postgres) GetCard(ctx context.Context, id string) (*models.Card, error) {
	return scanCard(p.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
}

func (p *Postgres) CountCards(ctx context.Context, userID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (p *Postgres) CreateCard(ctx context.Context, c *models.Card) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.UserID, c.Name, c.Brand, c.Limit, c.Color, c.ClosingDay, c.DueDay, c.CreatedAt, c.UpdatedAt)
	return mapError(err)
}

// UpdateCard stores the card and moves the rebilled purchases in one transaction.
func (p *Postgres) UpdateCard(ctx context.Context, c *models.Card, rebill []models.Transaction) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		err := expectRows(tx.ExecContext(ctx, `
			UPDATE cards SET name = $2, brand = $3, credit_limit = $4, color = $5, closing_day = $6, due_day = $7, updated_at = $8
			WHERE id = $1
		`, c.ID, c.Name, c.Brand, c.Limit, c.Color, c.ClosingDay, c.DueDay, c.UpdatedAt))
		if err != nil {
			return err
		}
		for _, t := range rebill {
			_, err := tx.ExecContext(ctx, `
				UPDATE transactions SET invoice_month = $2, due_date = $3, updated_at = $4 WHERE id = $1
			`, t.ID, t.InvoiceMonth, t.DueDate, c.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCard fails with ErrConflict while transactions are billed to it.
func (p *Postgres) DeleteCard(ctx context.Context, id string) error {
	return expectRows(p.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id))
}

// ============================================================================
// INVOICES
// ============================================================================

const invoiceColumns = `id, card_id, reference_month, closed_at, created_at`

func scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	var inv models.Invoice
	if err := row.Scan(&inv.ID, &inv.CardID, &inv.ReferenceMonth, &inv.ClosedAt, &inv.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &inv, nil
}

func (p *Postgres) GetInvoice(ctx context.Context, cardID string, month models.Month) (*models.Invoice, error) {
	return scanInvoice(p.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE card_id = $1 AND reference_month = $2
	`, cardID, month))
}

// EnsureInvoice inserts inv unless the card already has a row for that month and
// returns whichever row is stored.
func (p *Postgres) EnsureInvoice(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (card_id, reference_month) DO NOTHING
	`, inv.ID, inv.CardID, inv.ReferenceMonth, inv.ClosedAt, inv.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return p.GetInvoice(ctx, inv.CardID, inv.ReferenceMonth)
}

func (p *Postgres) ListInvoices(ctx context.Context, cardID string) ([]models.Invoice, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE card_id = $1 ORDER BY reference_month
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (p *Postgres) SetInvoiceClosed(ctx context.Context, invoiceID string, closedAt *time.Time) error {
	return expectRows(p.db.ExecContext(ctx, `UPDATE invoices SET closed_at = $2 WHERE id = $1`, invoiceID, closedAt))
}

func (p *Postgres) ListInvoicePayments(ctx context.Context, invoiceID string) ([]models.InvoicePayment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, paid_at, created_at FROM invoice_payments
		WHERE invoice_id = $1 ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.InvoicePayment{}
	for rows.Next() {
		var pay models.InvoicePayment
		if err := rows.Scan(&pay.ID, &pay.InvoiceID, &pay.Amount, &pay.PaidAt, &pay.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

// AddInvoicePayment records the payment and marks the settle rows as paid.
func (p *Postgres) AddInvoicePayment(ctx context.Context, pay *models.InvoicePayment, settle []string, now time.Time) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_payments (id, invoice_id, amount, paid_at, created_at) VALUES ($1, $2, $3, $4, $5)
		`, pay.ID, pay.InvoiceID, pay.Amount, pay.PaidAt, pay.CreatedAt)
		if err != nil {
			return mapError(err)
		}
		return setPaid(ctx, tx, settle, true, &now)
	})
}

// DeleteInvoicePayment removes the payment and reopens the given rows.
func (p *Postgres) DeleteInvoicePayment(ctx context.Context, invoiceID, paymentID string, reopen []string) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		err := expectRows(tx.ExecContext(ctx, `
			DELETE FROM invoice_payments WHERE id = $1 AND invoice_id = $2
		`, paymentID, invoiceID))
		if err != nil {
			return err
		}
		return setPaid(ctx, tx, reopen, false, nil)
	})
}

func setPaid(ctx context.Context, q queryer, ids []string, paid bool, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	var paidAt *time.Time
	if paid {
		paidAt = at
	}
	_, err := q.ExecContext(ctx, `
		UPDATE transactions SET paid = $2, paid_at = $3, updated_at = NOW() WHERE id = ANY($1)
	`, pq.Array(ids), paid, paidAt)
	return err
}
