package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

// TransactionQuery is what the list endpoint accepts.
type TransactionQuery struct {
	Month      *models.Month
	ByInvoice  bool
	Type       string
	CategoryID string
	CardID     string
	Paid       *bool
	Search     string
	SharedOnly bool
}

type TransactionService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewTransactionService(repo repository.Repository, pub events.Publisher) *TransactionService {
	return &TransactionService{repo: repo, pub: pub}
}

// List returns the user's rows. With SharedOnly the partner's rows shared with
// the user are included as well.
func (s *TransactionService) List(ctx context.Context, userID string, q TransactionQuery) (*models.TransactionList, error) {
	if q.Type != "" && q.Type != models.TypeIncome && q.Type != models.TypeExpense {
		return nil, models.NewValidationError("tipo", "must be receita or despesa")
	}
	items, err := s.repo.ListTransactions(ctx, models.TransactionFilter{
		UserID:        userID,
		IncludeShared: q.SharedOnly,
		SharedOnly:    q.SharedOnly,
		Month:         q.Month,
		ByInvoice:     q.ByInvoice,
		Type:          q.Type,
		CategoryID:    q.CategoryID,
		CardID:        q.CardID,
		Paid:          q.Paid,
		Search:        q.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &models.TransactionList{Items: items, Totals: models.ComputeTotals(items)}, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.VisibleTo(userID) {
		return nil, models.ErrNotFound
	}
	return t, nil
}

// owned loads a row for mutation. The partner can read a shared row but not
// change it.
func (s *TransactionService) owned(ctx context.Context, userID, id string) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		if t.VisibleTo(userID) {
			return nil, fmt.Errorf("%w: only the owner can change this transaction", models.ErrForbidden)
		}
		return nil, models.ErrNotFound
	}
	return t, nil
}

// resolve checks the category and card referenced by req against the user.
func (s *TransactionService) resolve(ctx context.Context, userID string, req *models.TransactionRequest) (*models.Card, error) {
	cat, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, notFoundAs(err, "category_id", "unknown category")
	}
	if cat.UserID != userID {
		return nil, models.NewValidationError("category_id", "unknown category")
	}
	if cat.Type != req.Type {
		return nil, models.NewValidationError("category_id", "category type %s does not match %s", cat.Type, req.Type)
	}
	if req.CardID == nil {
		return nil, nil
	}
	card, err := s.repo.GetCard(ctx, *req.CardID)
	if err != nil {
		return nil, notFoundAs(err, "card_id", "unknown card")
	}
	if card.UserID != userID {
		return nil, models.NewValidationError("card_id", "unknown card")
	}
	return card, nil
}

// applySplits builds the splits of a shared row and keeps payment progress from
// old when the row already had splits.
func applySplits(t *models.Transaction, partnerID string, old []models.Split, now time.Time) error {
	if !t.Shared {
		t.Splits, t.SplitMode, t.SplitValue = nil, "", decimal.Zero
		return nil
	}
	splits, err := models.ComputeSplits(t.Amount, t.UserID, partnerID, t.SplitMode, t.SplitValue)
	if err != nil {
		return err
	}
	if len(old) > 0 {
		splits = models.CarryPayments(old, splits, t.UserID)
	}
	for i := range splits {
		if splits[i].ID == "" {
			splits[i].ID = newID()
		}
		splits[i].TransactionID = t.ID
		if splits[i].Paid && splits[i].PaidAt == nil {
			stamp := now
			splits[i].PaidAt = &stamp
		}
	}
	t.Splits = splits
	return nil
}

// debtorOf returns who owes on a shared row: the user already on the splits, or
// the current partner for rows that were not shared before.
func (s *TransactionService) debtorOf(ctx context.Context, t *models.Transaction) (string, error) {
	for _, sp := range t.Splits {
		if sp.UserID != t.UserID {
			return sp.UserID, nil
		}
	}
	partnerID, err := partnerOf(ctx, s.repo, t.UserID)
	if err != nil {
		return "", err
	}
	if partnerID == "" {
		return "", models.NewValidationError("shared", "requires a linked partner")
	}
	return partnerID, nil
}

// Create stores one row, or one per installment or recurrence, atomically.
func (s *TransactionService) Create(ctx context.Context, userID string, req models.TransactionRequest) ([]models.Transaction, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	card, err := s.resolve(ctx, userID, &req)
	if err != nil {
		return nil, err
	}
	partnerID := ""
	if req.Shared {
		if partnerID, err = partnerOf(ctx, s.repo, userID); err != nil {
			return nil, err
		}
		if partnerID == "" {
			return nil, models.NewValidationError("shared", "requires a linked partner")
		}
	}

	now := s.Now()
	rows := models.BuildTransactions(req, userID, card, now, newID)
	for i := range rows {
		if err := applySplits(&rows[i], partnerID, nil, now); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreateTransactions(ctx, rows); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}
	utils.LogDataAction("transaction", "create", rows[0].ID, userID)
	s.announce(ctx, events.TransactionCreated, rows[0].ID, userID, partnerID)
	return rows, nil
}

// scopeRows returns the rows a scoped operation on t touches, t first.
func (s *TransactionService) scopeRows(ctx context.Context, t *models.Transaction, scope string) ([]models.Transaction, error) {
	switch scope {
	case "", models.ScopeSingle:
		return []models.Transaction{*t}, nil
	case models.ScopeFuture, models.ScopeAll:
	default:
		return nil, models.NewValidationError("escopo", "must be unica, futuras or todas")
	}
	group := t.GroupID()
	if group == "" {
		return []models.Transaction{*t}, nil
	}
	siblings, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: t.UserID, GroupID: group})
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	rows := []models.Transaction{*t}
	for _, sib := range siblings {
		if sib.ID == t.ID {
			continue
		}
		if scope == models.ScopeFuture && sib.Date.Before(t.Date) {
			continue
		}
		rows = append(rows, sib)
	}
	return rows, nil
}

// Update changes a row. With escopo futuras or todas the description, category,
// amount, notes and split settings also go to the other rows of its group; the
// date, due date and paid flag only change on the row itself.
func (s *TransactionService) Update(ctx context.Context, userID, id, scope string, req models.TransactionRequest) ([]models.Transaction, error) {
	req.Installments, req.Occurrences = 0, 0
	current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	req.Recurrence = current.Recurrence
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	card, err := s.resolve(ctx, userID, &req)
	if err != nil {
		return nil, err
	}
	rows, err := s.scopeRows(ctx, current, scope)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var partnerID string
	for i := range rows {
		row := &rows[i]
		old := row.Splits
		wasShared := row.Shared
		wasCard := row.CardID != nil
		oldCard, oldMonth := row.CardID, row.InvoiceMonth

		row.Description = req.Description
		row.Amount = models.RoundMoney(req.Amount)
		row.Type = req.Type
		row.CategoryID = req.CategoryID
		row.PaymentMethod = req.PaymentMethod
		row.Notes = req.Notes
		row.Shared, row.SplitMode, row.SplitValue = req.Shared, req.SplitMode, req.SplitValue
		row.UpdatedAt = now
		if i == 0 {
			row.Date = req.Date
			row.DueDate = req.DueDate
		}

		if card != nil {
			cardID := card.ID
			row.CardID = &cardID
			m := card.InvoiceMonthFor(row.Date)
			due := card.DueDate(m)
			row.InvoiceMonth, row.DueDate = &m, &due
			// A card row is paid through its invoice, so moving it to another
			// invoice leaves it open there.
			if !wasCard || *oldCard != cardID || oldMonth == nil || *oldMonth != m {
				row.Paid, row.PaidAt = false, nil
			}
		} else {
			row.CardID, row.InvoiceMonth = nil, nil
			if wasCard && i > 0 {
				row.DueDate = nil
			}
			if i == 0 && row.Paid != req.Paid {
				row.Paid, row.PaidAt = req.Paid, nil
				if req.Paid {
					stamp := now
					row.PaidAt = &stamp
				}
			}
		}

		if row.Shared {
			if !wasShared {
				old = nil
			}
			debtor, err := s.debtorOf(ctx, &models.Transaction{UserID: userID, Splits: old})
			if err != nil {
				return nil, err
			}
			partnerID = debtor
		}
		if err := applySplits(row, partnerID, old, now); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateTransactions(ctx, rows); err != nil {
		return nil, fmt.Errorf("update transactions: %w", err)
	}
	utils.LogDataAction("transaction", "update", id, userID)
	if partnerID == "" {
		partnerID = debtorOrEmpty(current)
	}
	s.announce(ctx, events.TransactionUpdated, id, userID, partnerID)
	return rows, nil
}

func debtorOrEmpty(t *models.Transaction) string {
	for _, sp := range t.Splits {
		if sp.UserID != t.UserID {
			return sp.UserID
		}
	}
	return ""
}

// Delete removes the row, this and the later rows of its group, or the whole
// group. It returns the removed ids.
func (s *TransactionService) Delete(ctx context.Context, userID, id, scope string) ([]string, error) {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.scopeRows(ctx, t, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := s.repo.DeleteTransactions(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete transactions: %w", err)
	}
	utils.LogDataAction("transaction", "delete", id, userID)
	s.announce(ctx, events.TransactionDeleted, id, userID, debtorOrEmpty(t))
	return ids, nil
}

// SetPaid toggles the paid flag. Card purchases follow their invoice instead.
func (s *TransactionService) SetPaid(ctx context.Context, userID, id string, paid bool) (*models.Transaction, error) {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if t.IsCardPurchase() {
		return nil, fmt.Errorf("%w: card purchases are paid through their invoice", models.ErrConflict)
	}
	if t.Paid == paid {
		return t, nil
	}
	var at *time.Time
	if paid {
		now := s.Now()
		at = &now
	}
	if err := s.repo.SetTransactionsPaid(ctx, []string{id}, paid, at); err != nil {
		return nil, fmt.Errorf("set paid: %w", err)
	}
	t.Paid, t.PaidAt = paid, at
	utils.LogDataAction("transaction", "pay", id, userID)
	s.announce(ctx, events.TransactionPaid, id, userID, debtorOrEmpty(t))
	return t, nil
}

// announce tells the owner and, for shared rows, the partner.
func (s *TransactionService) announce(ctx context.Context, typ, id, userID, partnerID string) {
	publish(ctx, s.pub, events.New(typ, id, userID, partnerID))
}
