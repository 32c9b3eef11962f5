package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
)

const dashboardRecent = 10

type DashboardService struct {
	clock
	repo     repository.Repository
	invoices *InvoiceService
	goals    *GoalService
	shared   *SharedService
	points   *PointsService
}

func NewDashboardService(repo repository.Repository, invoices *InvoiceService, goals *GoalService, shared *SharedService, points *PointsService) *DashboardService {
	return &DashboardService{repo: repo, invoices: invoices, goals: goals, shared: shared, points: points}
}

// Get builds every part of the dashboard concurrently. The first failure
// cancels the rest.
func (s *DashboardService) Get(ctx context.Context, userID string, month *models.Month) (*models.Dashboard, error) {
	today := s.Today()
	m := today.YearMonth()
	if month != nil {
		m = *month
	}
	d := &models.Dashboard{Month: m}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.repo.ListTransactions(gctx, models.TransactionFilter{UserID: userID, Month: &m})
		if err != nil {
			return fmt.Errorf("month totals: %w", err)
		}
		d.Totals = models.ComputeTotals(txs)
		return nil
	})
	g.Go(func() error {
		txs, err := s.repo.ListTransactions(gctx, models.TransactionFilter{UserID: userID, Limit: dashboardRecent})
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		d.Recent = txs
		return nil
	})
	g.Go(func() error {
		unpaid := false
		until := today.AddDays(models.DashboardUpcomingDays)
		txs, err := s.repo.ListTransactions(gctx, models.TransactionFilter{
			UserID:  userID,
			Type:    models.TypeExpense,
			Paid:    &unpaid,
			DueFrom: &today,
			DueTo:   &until,
		})
		if err != nil {
			return fmt.Errorf("upcoming bills: %w", err)
		}
		d.Upcoming = txs
		return nil
	})
	g.Go(func() error {
		overview, err := s.currentInvoices(gctx, userID, today)
		if err != nil {
			return fmt.Errorf("card invoices: %w", err)
		}
		d.Invoices = overview
		return nil
	})
	g.Go(func() error {
		goals, err := s.goals.List(gctx, userID)
		if err != nil {
			return err
		}
		d.Goals = models.SummarizeGoals(goals)
		return nil
	})
	g.Go(func() error {
		summary, err := s.shared.Summary(gctx, userID, &m)
		if err != nil {
			return err
		}
		d.Shared = summary.Balance
		return nil
	})
	g.Go(func() error {
		balances, err := s.points.Balances(gctx, userID)
		if err != nil {
			return err
		}
		d.Points = balances
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// currentInvoices returns, per card, the invoice that today's purchases go to.
func (s *DashboardService) currentInvoices(ctx context.Context, userID string, today models.Date) ([]models.CardInvoiceOverview, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.CardInvoiceOverview, 0, len(cards))
	for i := range cards {
		card := &cards[i]
		m := card.InvoiceMonthFor(today)
		detail, err := s.invoices.build(ctx, card, m)
		if err != nil {
			return nil, err
		}
		out = append(out, models.CardInvoiceOverview{
			CardID:  card.ID,
			Name:    card.Name,
			Color:   card.Color,
			Month:   m,
			DueDate: detail.DueDate,
			Total:   detail.Total,
			Status:  detail.Status,
		})
	}
	return out, nil
}
