package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

// SharedService handles the compartilhado view: what each partner owes on
// shared expenses and paying it back.
type SharedService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewSharedService(repo repository.Repository, pub events.Publisher) *SharedService {
	return &SharedService{repo: repo, pub: pub}
}

func (s *SharedService) shared(ctx context.Context, userID string, month *models.Month) ([]models.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{
		UserID:        userID,
		IncludeShared: true,
		SharedOnly:    true,
		Month:         month,
	})
	if err != nil {
		return nil, fmt.Errorf("list shared transactions: %w", err)
	}
	return txs, nil
}

func (s *SharedService) Summary(ctx context.Context, userID string, month *models.Month) (*models.SharedSummary, error) {
	txs, err := s.shared(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	summary := models.SummarizeShared(txs, userID)
	return &summary, nil
}

// PaySplit lets the debtor pay back part or all of their share of a shared row.
func (s *SharedService) PaySplit(ctx context.Context, userID, transactionID string, req models.PaySplitRequest) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !t.Shared || !t.VisibleTo(userID) {
		return nil, models.ErrNotFound
	}
	if t.UserID == userID {
		return nil, fmt.Errorf("%w: only the partner who owes can pay this split", models.ErrForbidden)
	}
	split := t.SplitOf(userID)
	if split == nil {
		return nil, models.ErrNotFound
	}
	if req.Amount.IsNegative() {
		return nil, models.NewValidationError("amount", "cannot be negative")
	}
	if _, err := split.Pay(req.Amount, s.Now()); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: split already paid", models.ErrConflict)
		}
		return nil, err
	}
	if err := s.repo.UpdateSplits(ctx, []models.Split{*split}); err != nil {
		return nil, fmt.Errorf("update split: %w", err)
	}
	utils.LogDataAction("split", "pay", split.ID, userID)
	publish(ctx, s.pub, events.New(events.SplitPaid, t.ID, userID, t.UserID))
	return t, nil
}

// Settle pays every pending split of month in both directions. Net is what the
// partner owed the user minus what the user owed, before settling.
func (s *SharedService) Settle(ctx context.Context, userID string, month models.Month) (*models.SettleResult, error) {
	txs, err := s.shared(ctx, userID, &month)
	if err != nil {
		return nil, err
	}
	summary := models.SummarizeShared(txs, userID)

	now := s.Now()
	var pending []models.Split
	notify := map[string]struct{}{}
	for i := range txs {
		t := &txs[i]
		for j := range t.Splits {
			sp := &t.Splits[j]
			if sp.UserID == t.UserID || sp.Paid {
				continue
			}
			if _, err := sp.Pay(sp.Remaining(), now); err != nil {
				return nil, fmt.Errorf("settle split %s: %w", sp.ID, err)
			}
			pending = append(pending, *sp)
			notify[t.UserID] = struct{}{}
			notify[sp.UserID] = struct{}{}
		}
	}

	result := &models.SettleResult{Month: month, Settled: len(pending), Net: summary.Balance.Net}
	if len(pending) == 0 {
		return result, nil
	}
	if err := s.repo.UpdateSplits(ctx, pending); err != nil {
		return nil, fmt.Errorf("settle splits: %w", err)
	}
	utils.LogDataAction("shared", "settle", month.String(), userID)

	others := make([]string, 0, len(notify))
	for id := range notify {
		others = append(others, id)
	}
	publish(ctx, s.pub, events.New(events.SharedSettled, month.String(), userID, others...))
	return result, nil
}
