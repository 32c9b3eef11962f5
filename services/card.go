package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

type CardService struct {
	clock
	repo repository.Repository
	pub  events.Publisher
}

func NewCardService(repo repository.Repository, pub events.Publisher) *CardService {
	return &CardService{repo: repo, pub: pub}
}

// ownedCard loads a card and hides other users' cards behind ErrNotFound.
func ownedCard(ctx context.Context, repo repository.Repository, userID, id string) (*models.Card, error) {
	c, err := repo.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (s *CardService) unpaid(ctx context.Context, userID, cardID string) ([]models.Transaction, error) {
	unpaid := false
	txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{UserID: userID, CardID: cardID, Paid: &unpaid})
	if err != nil {
		return nil, fmt.Errorf("load card transactions: %w", err)
	}
	return txs, nil
}

// List returns the user's cards with their available limit.
func (s *CardService) List(ctx context.Context, userID string) ([]models.Card, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return cards, nil
	}
	txs, err := s.unpaid(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	for i := range cards {
		cards[i].AvailableLimit = cards[i].ComputeAvailableLimit(txs)
	}
	return cards, nil
}

func (s *CardService) Get(ctx context.Context, userID, id string) (*models.Card, error) {
	card, err := ownedCard(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.unpaid(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	card.AvailableLimit = card.ComputeAvailableLimit(txs)
	return card, nil
}

func (s *CardService) Create(ctx context.Context, userID string, req models.CardRequest) (*models.Card, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	now := s.Now()
	if err := checkPlanLimit(ctx, s.repo, userID, now, "cards"); err != nil {
		return nil, err
	}
	card := &models.Card{
		ID:             newID(),
		UserID:         userID,
		Name:           req.Name,
		Brand:          req.Brand,
		Limit:          models.RoundMoney(req.Limit),
		Color:          req.Color,
		ClosingDay:     req.ClosingDay,
		DueDay:         req.DueDay,
		AvailableLimit: models.RoundMoney(req.Limit),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	utils.LogDataAction("card", "create", card.ID, userID)
	s.announce(ctx, userID, card.ID)
	return card, nil
}

// Update changes the card. When the billing days move, unpaid purchases are
// billed again under the new cycle.
func (s *CardService) Update(ctx context.Context, userID, id string, req models.CardRequest) (*models.Card, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	card, err := ownedCard(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	cycleChanged := card.ClosingDay != req.ClosingDay || card.DueDay != req.DueDay

	card.Name, card.Brand, card.Color = req.Name, req.Brand, req.Color
	card.Limit = models.RoundMoney(req.Limit)
	card.ClosingDay, card.DueDay = req.ClosingDay, req.DueDay
	card.UpdatedAt = s.Now()

	txs, err := s.unpaid(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var rebill []models.Transaction
	if cycleChanged {
		rebill = card.Rebill(txs)
	}
	if err := s.repo.UpdateCard(ctx, card, rebill); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	card.AvailableLimit = card.ComputeAvailableLimit(txs)
	utils.LogDataAction("card", "update", card.ID, userID)
	s.announce(ctx, userID, card.ID)
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, userID, id string) error {
	if _, err := ownedCard(ctx, s.repo, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	utils.LogDataAction("card", "delete", id, userID)
	s.announce(ctx, userID, id)
	return nil
}

func (s *CardService) announce(ctx context.Context, userID, id string) {
	publish(ctx, s.pub, events.New(events.CardChanged, id, userID))
}
