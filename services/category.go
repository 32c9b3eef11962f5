package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

type CategoryService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewCategoryService(repo repository.Repository, pub events.Publisher) *CategoryService {
	return &CategoryService{repo: repo, pub: pub}
}

func (s *CategoryService) List(ctx context.Context, userID, typ string) ([]models.Category, error) {
	if typ != "" && typ != models.TypeIncome && typ != models.TypeExpense {
		return nil, models.NewValidationError("tipo", "must be receita or despesa")
	}
	return s.repo.ListCategories(ctx, userID, typ)
}

// owned loads a category and hides other users' categories behind ErrNotFound.
func (s *CategoryService) owned(ctx context.Context, userID, id string) (*models.Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, userID string, req models.CategoryRequest) (*models.Category, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	c := &models.Category{
		ID:        newID(),
		UserID:    userID,
		Name:      req.Name,
		Type:      req.Type,
		Color:     req.Color,
		Icon:      req.Icon,
		CreatedAt: s.Now(),
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	utils.LogDataAction("category", "create", c.ID, userID)
	s.announce(ctx, userID, c.ID)
	return c, nil
}

// Update renames or recolors a category. The type can only change while no
// transaction uses it.
func (s *CategoryService) Update(ctx context.Context, userID, id string, req models.CategoryRequest) (*models.Category, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Type != c.Type {
		used, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: userID, CategoryID: id, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("check category usage: %w", err)
		}
		if len(used) > 0 {
			return nil, models.NewValidationError("type", "cannot change the type of a category in use")
		}
	}
	c.Name, c.Type, c.Color, c.Icon = req.Name, req.Type, req.Color, req.Icon
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	utils.LogDataAction("category", "update", c.ID, userID)
	s.announce(ctx, userID, c.ID)
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	utils.LogDataAction("category", "delete", id, userID)
	s.announce(ctx, userID, id)
	return nil
}

func (s *CategoryService) announce(ctx context.Context, userID, id string) {
	publish(ctx, s.pub, events.New(events.CategoryChanged, id, userID))
}
