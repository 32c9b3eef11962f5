package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

type GoalService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewGoalService(repo repository.Repository, pub events.Publisher) *GoalService {
	return &GoalService{repo: repo, pub: pub}
}

func (s *GoalService) List(ctx context.Context, userID string) ([]models.Goal, error) {
	goals, err := s.repo.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	today := s.Today()
	for i := range goals {
		goals[i].Compute(today)
	}
	return goals, nil
}

func (s *GoalService) Get(ctx context.Context, userID, id string) (*models.Goal, error) {
	g, err := s.repo.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, models.ErrNotFound
	}
	g.Compute(s.Today())
	return g, nil
}

func (s *GoalService) Create(ctx context.Context, userID string, req models.GoalRequest) (*models.Goal, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	now := s.Now()
	if err := checkPlanLimit(ctx, s.repo, userID, now, "goals"); err != nil {
		return nil, err
	}
	g := &models.Goal{
		ID:           newID(),
		UserID:       userID,
		Title:        req.Title,
		TargetAmount: models.RoundMoney(req.TargetAmount),
		DueDate:      req.DueDate,
		Color:        req.Color,
		Icon:         req.Icon,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	g.Compute(s.Today())
	utils.LogDataAction("goal", "create", g.ID, userID)
	s.announce(ctx, userID, g.ID)
	return g, nil
}

func (s *GoalService) Update(ctx context.Context, userID, id string, req models.GoalRequest) (*models.Goal, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	g.Title = req.Title
	g.TargetAmount = models.RoundMoney(req.TargetAmount)
	g.DueDate, g.Color, g.Icon = req.DueDate, req.Color, req.Icon
	g.UpdatedAt = s.Now()
	if err := s.repo.UpdateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	g.Compute(s.Today())
	utils.LogDataAction("goal", "update", g.ID, userID)
	s.announce(ctx, userID, g.ID)
	return g, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteGoal(ctx, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	utils.LogDataAction("goal", "delete", id, userID)
	s.announce(ctx, userID, id)
	return nil
}

// AddContribution records an aporte. A withdrawal cannot exceed what was saved.
func (s *GoalService) AddContribution(ctx context.Context, userID, goalID string, req models.ContributionRequest) (*models.Goal, error) {
	if err := req.Normalize(s.Today()); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() && req.Amount.Abs().GreaterThan(g.CurrentAmount) {
		return nil, models.NewValidationError("amount", "withdrawal exceeds the saved %s", g.CurrentAmount.StringFixed(2))
	}
	c := &models.Contribution{
		ID:        newID(),
		GoalID:    goalID,
		Amount:    req.Amount,
		Date:      req.Date,
		Note:      req.Note,
		CreatedAt: s.Now(),
	}
	if err := s.repo.AddContribution(ctx, c); err != nil {
		return nil, fmt.Errorf("add contribution: %w", err)
	}
	utils.LogDataAction("contribution", "create", c.ID, userID)
	s.announce(ctx, userID, goalID)
	return s.Get(ctx, userID, goalID)
}

// DeleteContribution removes an aporte unless the goal would end up negative.
func (s *GoalService) DeleteContribution(ctx context.Context, userID, goalID, id string) (*models.Goal, error) {
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	amount := decimal.Zero
	found := false
	for _, c := range g.Contributions {
		if c.ID == id {
			amount, found = c.Amount, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: contribution", models.ErrNotFound)
	}
	if g.CurrentAmount.Sub(amount).IsNegative() {
		return nil, fmt.Errorf("%w: removing this contribution leaves the goal negative", models.ErrConflict)
	}
	if err := s.repo.DeleteContribution(ctx, goalID, id); err != nil {
		return nil, fmt.Errorf("delete contribution: %w", err)
	}
	utils.LogDataAction("contribution", "delete", id, userID)
	s.announce(ctx, userID, goalID)
	return s.Get(ctx, userID, goalID)
}

func (s *GoalService) announce(ctx context.Context, userID, id string) {
	publish(ctx, s.pub, events.New(events.GoalChanged, id, userID))
}
