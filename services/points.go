package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

type PointsService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewPointsService(repo repository.Repository, pub events.Publisher) *PointsService {
	return &PointsService{repo: repo, pub: pub}
}

// List returns the entries, optionally of one program, with per-program balances.
func (s *PointsService) List(ctx context.Context, userID, program string) (*models.PointsList, error) {
	items, err := s.repo.ListPointEntries(ctx, userID, program)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	return &models.PointsList{Items: items, Balances: models.ComputeBalances(items)}, nil
}

func (s *PointsService) Balances(ctx context.Context, userID string) ([]models.PointsBalance, error) {
	items, err := s.repo.ListPointEntries(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	return models.ComputeBalances(items), nil
}

// Create records a movement. Redemptions and expirations cannot take the program
// below zero.
func (s *PointsService) Create(ctx context.Context, userID string, req models.PointEntryRequest) (*models.PointEntry, error) {
	if err := req.Normalize(s.Today()); err != nil {
		return nil, err
	}
	if req.Type != models.PointsEarned {
		entries, err := s.repo.ListPointEntries(ctx, userID, req.Program)
		if err != nil {
			return nil, fmt.Errorf("list points: %w", err)
		}
		if balance := models.BalanceOf(entries, req.Program); req.Quantity > balance {
			return nil, models.NewValidationError("quantity", "exceeds the %s balance of %d points", req.Program, balance)
		}
	}
	entry := &models.PointEntry{
		ID:              newID(),
		UserID:          userID,
		Program:         req.Program,
		Quantity:        req.Quantity,
		Type:            req.Type,
		RedemptionValue: req.RedemptionValue,
		Date:            req.Date,
		Description:     req.Description,
		CreatedAt:       s.Now(),
	}
	if err := s.repo.CreatePointEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create point entry: %w", err)
	}
	utils.LogDataAction("points", "create", entry.ID, userID)
	publish(ctx, s.pub, events.New(events.PointsChanged, entry.ID, userID))
	return entry, nil
}

// Delete removes an entry unless that leaves its program with a negative balance.
func (s *PointsService) Delete(ctx context.Context, userID, id string) error {
	entry, err := s.repo.GetPointEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return models.ErrNotFound
	}
	if entry.Type == models.PointsEarned {
		entries, err := s.repo.ListPointEntries(ctx, userID, entry.Program)
		if err != nil {
			return fmt.Errorf("list points: %w", err)
		}
		if models.BalanceOf(entries, entry.Program)-entry.Quantity < 0 {
			return fmt.Errorf("%w: points already redeemed from this entry", models.ErrConflict)
		}
	}
	if err := s.repo.DeletePointEntry(ctx, id); err != nil {
		return fmt.Errorf("delete point entry: %w", err)
	}
	utils.LogDataAction("points", "delete", id, userID)
	publish(ctx, s.pub, events.New(events.PointsChanged, id, userID))
	return nil
}
