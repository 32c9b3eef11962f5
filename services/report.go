package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
)

type ReportService struct {
	clock
	repo repository.Repository
}

func NewReportService(repo repository.Repository) *ReportService {
	return &ReportService{repo: repo}
}

// Build aggregates the user's own rows over the query range. Shared rows count
// at their full amount for the owner.
func (s *ReportService) Build(ctx context.Context, userID string, q models.ReportQuery) (*models.Report, error) {
	if err := q.Normalize(s.Today().YearMonth()); err != nil {
		return nil, err
	}

	var (
		categories []models.Category
		cards      []models.Card
		txs        []models.Transaction
	)
	from, to := q.Start.First(), q.End.Last()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.repo.ListCategories(gctx, userID, "")
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.repo.ListCards(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.repo.ListTransactions(gctx, models.TransactionFilter{UserID: userID, From: &from, To: &to, Type: q.Type})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load report data: %w", err)
	}

	report := models.BuildReport(q, txs, categories, cards)
	return &report, nil
}
