package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

type InvoiceService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewInvoiceService(repo repository.Repository, pub events.Publisher) *InvoiceService {
	return &InvoiceService{repo: repo, pub: pub}
}

// List returns the invoices of year that have purchases or a stored row.
func (s *InvoiceService) List(ctx context.Context, userID, cardID string, year int) ([]models.InvoiceSummary, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.Today().Year()
	}

	txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: userID, CardID: cardID})
	if err != nil {
		return nil, fmt.Errorf("load card transactions: %w", err)
	}
	stored, err := s.repo.ListInvoices(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}

	months := map[models.Month]*models.Invoice{}
	for _, t := range txs {
		if t.InvoiceMonth != nil && t.InvoiceMonth.Year == year {
			months[*t.InvoiceMonth] = nil
		}
	}
	for i := range stored {
		if stored[i].ReferenceMonth.Year == year {
			months[stored[i].ReferenceMonth] = &stored[i]
		}
	}

	today := s.Today()
	out := make([]models.InvoiceSummary, 0, len(months))
	for m, inv := range months {
		var payments []models.InvoicePayment
		if inv != nil {
			if payments, err = s.repo.ListInvoicePayments(ctx, inv.ID); err != nil {
				return nil, fmt.Errorf("load payments: %w", err)
			}
		}
		out = append(out, models.BuildInvoice(card, m, txs, inv, payments, today).Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceMonth.Before(out[j].ReferenceMonth) })
	return out, nil
}

func (s *InvoiceService) Get(ctx context.Context, userID, cardID string, month models.Month) (*models.InvoiceDetail, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, card, month)
}

func (s *InvoiceService) build(ctx context.Context, card *models.Card, month models.Month) (*models.InvoiceDetail, error) {
	txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: card.UserID, CardID: card.ID, InvoiceMonth: &month})
	if err != nil {
		return nil, fmt.Errorf("load invoice transactions: %w", err)
	}
	stored, err := s.repo.GetInvoice(ctx, card.ID, month)
	if errors.Is(err, models.ErrNotFound) {
		stored = nil
	} else if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	var payments []models.InvoicePayment
	if stored != nil {
		if payments, err = s.repo.ListInvoicePayments(ctx, stored.ID); err != nil {
			return nil, fmt.Errorf("load payments: %w", err)
		}
	}
	detail := models.BuildInvoice(card, month, txs, stored, payments, s.Today())
	return &detail, nil
}

func (s *InvoiceService) ensure(ctx context.Context, card *models.Card, month models.Month) (*models.Invoice, error) {
	inv, err := s.repo.EnsureInvoice(ctx, &models.Invoice{
		ID:             newID(),
		CardID:         card.ID,
		ReferenceMonth: month,
		CreatedAt:      s.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure invoice: %w", err)
	}
	return inv, nil
}

// AddPayment records a payment. Reaching the total marks every purchase of the
// invoice as paid.
func (s *InvoiceService) AddPayment(ctx context.Context, userID, cardID string, month models.Month, req models.InvoicePaymentRequest) (*models.InvoiceDetail, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	detail, err := s.build(ctx, card, month)
	if err != nil {
		return nil, err
	}
	amount := models.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if amount.GreaterThan(detail.Remaining) {
		return nil, models.NewValidationError("amount", "exceeds the remaining %s", detail.Remaining.StringFixed(2))
	}

	inv, err := s.ensure(ctx, card, month)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.Today()
	}
	payment := &models.InvoicePayment{
		ID:        newID(),
		InvoiceID: inv.ID,
		Amount:    amount,
		PaidAt:    paidAt,
		CreatedAt: now,
	}

	var settle []string
	settled := !detail.PaidAmount.Add(amount).LessThan(detail.Total)
	if settled {
		for _, t := range detail.Transactions {
			if !t.Paid {
				settle = append(settle, t.ID)
			}
		}
	}
	if err := s.repo.AddInvoicePayment(ctx, payment, settle, now); err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}
	utils.LogDataAction("invoice_payment", "create", payment.ID, userID)
	if settled {
		publish(ctx, s.pub, events.New(events.InvoicePaid, inv.ID, userID))
	}
	return s.build(ctx, card, month)
}

// DeletePayment removes a payment. Dropping below the total reopens the
// purchases the invoice had settled.
func (s *InvoiceService) DeletePayment(ctx context.Context, userID, cardID string, month models.Month, paymentID string) (*models.InvoiceDetail, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	detail, err := s.build(ctx, card, month)
	if err != nil {
		return nil, err
	}
	if detail.ID == "" {
		return nil, fmt.Errorf("%w: payment", models.ErrNotFound)
	}
	var removed *models.InvoicePayment
	for i := range detail.Payments {
		if detail.Payments[i].ID == paymentID {
			removed = &detail.Payments[i]
			break
		}
	}
	if removed == nil {
		return nil, fmt.Errorf("%w: payment", models.ErrNotFound)
	}

	var reopen []string
	if detail.PaidAmount.Sub(removed.Amount).LessThan(detail.Total) {
		for _, t := range detail.Transactions {
			if t.Paid {
				reopen = append(reopen, t.ID)
			}
		}
	}
	if err := s.repo.DeleteInvoicePayment(ctx, detail.ID, paymentID, reopen); err != nil {
		return nil, fmt.Errorf("delete payment: %w", err)
	}
	utils.LogDataAction("invoice_payment", "delete", paymentID, userID)
	if len(reopen) > 0 {
		publish(ctx, s.pub, events.New(events.InvoiceReopened, detail.ID, userID))
	}
	return s.build(ctx, card, month)
}

// Close closes the invoice before its closing day.
func (s *InvoiceService) Close(ctx context.Context, userID, cardID string, month models.Month) (*models.InvoiceDetail, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	if err := s.close(ctx, card, month); err != nil {
		return nil, err
	}
	return s.build(ctx, card, month)
}

func (s *InvoiceService) close(ctx context.Context, card *models.Card, month models.Month) error {
	inv, err := s.ensure(ctx, card, month)
	if err != nil {
		return err
	}
	if inv.ClosedAt != nil {
		return nil
	}
	now := s.Now()
	if err := s.repo.SetInvoiceClosed(ctx, inv.ID, &now); err != nil {
		return fmt.Errorf("close invoice: %w", err)
	}
	publish(ctx, s.pub, events.New(events.InvoiceClosed, inv.ID, card.UserID))
	return nil
}

// Reopen undoes a manual close. A paid invoice cannot be reopened, except an
// empty one that only counts as paid because it was closed.
func (s *InvoiceService) Reopen(ctx context.Context, userID, cardID string, month models.Month) (*models.InvoiceDetail, error) {
	card, err := ownedCard(ctx, s.repo, userID, cardID)
	if err != nil {
		return nil, err
	}
	detail, err := s.build(ctx, card, month)
	if err != nil {
		return nil, err
	}
	if detail.IsSettled() && !(detail.ManuallyClosed && detail.Total.IsZero()) {
		return nil, fmt.Errorf("%w: invoice is already paid", models.ErrConflict)
	}
	if !detail.ManuallyClosed {
		return detail, nil
	}
	if err := s.repo.SetInvoiceClosed(ctx, detail.ID, nil); err != nil {
		return nil, fmt.Errorf("reopen invoice: %w", err)
	}
	publish(ctx, s.pub, events.New(events.InvoiceReopened, detail.ID, userID))
	return s.build(ctx, card, month)
}

// CloseDue closes, for every card, the latest invoice whose closing day has
// passed, when it has purchases. It returns how many invoices it closed.
func (s *InvoiceService) CloseDue(ctx context.Context, today models.Date) (int, error) {
	cards, err := s.repo.ListAllCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cards: %w", err)
	}
	closed := 0
	for i := range cards {
		card := &cards[i]
		month := today.YearMonth()
		if today.Before(card.ClosingDate(month)) {
			month = month.Add(-1)
		}
		stored, err := s.repo.GetInvoice(ctx, card.ID, month)
		if err == nil && stored.ClosedAt != nil {
			continue
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return closed, fmt.Errorf("load invoice: %w", err)
		}
		txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: card.UserID, CardID: card.ID, InvoiceMonth: &month, Limit: 1})
		if err != nil {
			return closed, fmt.Errorf("load invoice transactions: %w", err)
		}
		if len(txs) == 0 {
			continue
		}
		if err := s.close(ctx, card, month); err != nil {
			return closed, err
		}
		closed++
		slog.DebugContext(ctx, "invoice closed", "card_id", card.ID, "month", month.String())
	}
	return closed, nil
}
