package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
)

// RunStats reports what one maintenance pass did.
type RunStats struct {
	InvoicesClosed     int
	RemindersSent      int
	SessionsDeleted    int64
	InvitationsDeleted int64
}

// Scheduler runs the daily maintenance: closing invoices, due date reminders
// and cleanup of expired sessions and invitations.
type Scheduler struct {
	clock
	repo      repository.Repository
	invoices  *InvoiceService
	pub       events.Publisher
	interval  time.Duration
	daysAhead int
}

func NewScheduler(repo repository.Repository, invoices *InvoiceService, pub events.Publisher, interval time.Duration, daysAhead int) *Scheduler {
	return &Scheduler{repo: repo, invoices: invoices, pub: pub, interval: interval, daysAhead: daysAhead}
}

// Run does a pass right away and then one per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	stats, err := s.RunOnce(runCtx)
	if err != nil {
		slog.ErrorContext(ctx, "scheduled maintenance failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "scheduled maintenance done",
		"invoices_closed", stats.InvoicesClosed,
		"reminders", stats.RemindersSent,
		"sessions_deleted", stats.SessionsDeleted,
		"invitations_deleted", stats.InvitationsDeleted,
	)
}

// RunOnce does one maintenance pass. Steps are independent: a failing step does
// not stop the others, and the first error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	today := s.Today()

	closed, err := s.invoices.CloseDue(ctx, today)
	stats.InvoicesClosed = closed
	keep(err)

	sent, err := s.sendReminders(ctx, today)
	stats.RemindersSent = sent
	keep(err)

	now := s.Now()
	stats.SessionsDeleted, err = s.repo.DeleteExpiredSessions(ctx, now)
	keep(err)
	stats.InvitationsDeleted, err = s.repo.DeleteExpiredInvitations(ctx, now)
	keep(err)

	return stats, firstErr
}

// sendReminders publishes a reminder for every unpaid expense due between today
// and daysAhead days from now. Each due date is reminded once, so later runs
// skip rows already covered and a changed due date gets a new reminder.
func (s *Scheduler) sendReminders(ctx context.Context, today models.Date) (int, error) {
	unpaid := false
	until := today.AddDays(s.daysAhead)
	txs, err := s.repo.ListTransactions(ctx, models.TransactionFilter{
		Type:    models.TypeExpense,
		Paid:    &unpaid,
		DueFrom: &today,
		DueTo:   &until,
	})
	if err != nil {
		return 0, fmt.Errorf("load due transactions: %w", err)
	}

	users := map[string]*models.User{}
	sent := 0
	now := s.Now()
	for _, t := range txs {
		claimed, err := s.repo.ClaimReminder(ctx, t.ID, *t.DueDate, now)
		if err != nil {
			return sent, fmt.Errorf("claim reminder: %w", err)
		}
		if !claimed {
			continue
		}
		u, ok := users[t.UserID]
		if !ok {
			if u, err = s.repo.GetUserByID(ctx, t.UserID); err != nil {
				return sent, fmt.Errorf("load user: %w", err)
			}
			users[t.UserID] = u
		}
		e := events.New(events.DueReminder, t.ID, t.UserID)
		e.Reminder = &events.Reminder{
			TransactionID: t.ID,
			Email:         u.Email,
			Name:          u.Name,
			Description:   t.Description,
			Amount:        t.Amount,
			DueDate:       t.DueDate.String(),
		}
		publish(ctx, s.pub, e)
		sent++
	}
	return sent, nil
}

// ReminderSender is the part of EmailService the worker needs.
type ReminderSender interface {
	SendDueReminder(ctx context.Context, r *events.Reminder) error
}

// ReminderHandler emails the reminders consumed from the queue. Other event
// types are acknowledged and ignored.
func ReminderHandler(mail ReminderSender) func(context.Context, *events.Event) error {
	return func(ctx context.Context, e *events.Event) error {
		if e.Type != events.DueReminder || e.Reminder == nil {
			return nil
		}
		if err := mail.SendDueReminder(ctx, e.Reminder); err != nil {
			return fmt.Errorf("send reminder for %s: %w", e.Reminder.TransactionID, err)
		}
		return nil
	}
}
