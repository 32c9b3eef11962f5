package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
)

func withDue(req models.TransactionRequest, due string) models.TransactionRequest {
	d := date(due)
	req.DueDate = &d
	return req
}

func TestSchedulerRunOnce(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	f.card(t, "ana", "c1", 5, 15)
	txs := f.transactions()

	mustCreate := func(req models.TransactionRequest) models.Transaction {
		t.Helper()
		rows, err := txs.Create(ctx, "ana", req)
		if err != nil {
			t.Fatal(err)
		}
		return rows[0]
	}
	light := mustCreate(withDue(expense("ana", "Luz", "180.00", "2025-03-01"), "2025-03-12"))
	mustCreate(withDue(expense("ana", "Água", "90.00", "2025-03-01"), "2025-03-20"))
	gas := mustCreate(withDue(expense("ana", "Gás", "60.00", "2025-03-01"), "2025-03-11"))
	if _, err := txs.SetPaid(ctx, "ana", gas.ID, true); err != nil {
		t.Fatal(err)
	}
	mustCreate(creditPurchase("ana", "c1", "250.00", "2025-03-01", 0))

	for _, s := range []models.Session{
		{ID: "s1", UserID: "ana", RefreshToken: "old", ExpiresAt: fixedNow.Add(-time.Hour)},
		{ID: "s2", UserID: "ana", RefreshToken: "live", ExpiresAt: fixedNow.Add(time.Hour)},
	} {
		if err := f.repo.CreateSession(ctx, &s); err != nil {
			t.Fatal(err)
		}
	}
	stale := &models.Invitation{ID: "i1", InviterID: "ana", Email: "bob@example.com", Token: "t1",
		Status: models.InvitationPending, ExpiresAt: fixedNow.Add(-time.Minute), CreatedAt: fixedNow.Add(-models.InvitationTTL)}
	if err := f.repo.CreateInvitation(ctx, stale); err != nil {
		t.Fatal(err)
	}

	f.pub.Events = nil
	sched := NewScheduler(f.repo, f.invoices(), f.pub, time.Hour, 3)
	sched.clock = f.clock

	stats, err := sched.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := RunStats{InvoicesClosed: 1, RemindersSent: 1, SessionsDeleted: 1, InvitationsDeleted: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}

	var reminders []events.Event
	for _, e := range f.pub.Events {
		if e.Type == events.DueReminder {
			reminders = append(reminders, e)
		}
	}
	if len(reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(reminders))
	}
	r := reminders[0].Reminder
	if r == nil || r.TransactionID != light.ID || r.Email != "ana@example.com" || r.DueDate != "2025-03-12" || !r.Amount.Equal(dec("180")) {
		t.Fatalf("reminder payload = %+v", r)
	}

	if _, err := f.repo.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}

	stats, err = sched.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.InvoicesClosed != 0 || stats.SessionsDeleted != 0 || stats.RemindersSent != 0 {
		t.Fatalf("second pass = %+v", stats)
	}
}

func TestSchedulerRemindsOncePerDueDate(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	rows, err := f.transactions().Create(ctx, "ana", withDue(expense("ana", "Luz", "180.00", "2025-03-01"), "2025-03-12"))
	if err != nil {
		t.Fatal(err)
	}
	light := rows[0]

	reminders := func() int {
		t.Helper()
		sched := NewScheduler(f.repo, f.invoices(), f.pub, time.Hour, 3)
		sched.clock = f.clock
		stats, err := sched.RunOnce(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return stats.RemindersSent
	}

	steps := []struct {
		name string
		do   func()
		want int
	}{
		{"first run", func() {}, 1},
		{"same day again", func() {}, 0},
		{"next day after a restart", func() {
			f.clock = clock{now: func() time.Time { return fixedNow.Add(24 * time.Hour) }}
		}, 0},
		{"due date moved", func() {
			due := date("2025-03-13")
			light.DueDate = &due
			if err := f.repo.UpdateTransactions(ctx, []models.Transaction{light}); err != nil {
				t.Fatal(err)
			}
		}, 1},
	}
	for _, step := range steps {
		step.do()
		if got := reminders(); got != step.want {
			t.Fatalf("%s: reminders = %d, want %d", step.name, got, step.want)
		}
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sched := NewScheduler(f.repo, f.invoices(), f.pub, time.Hour, 3)
	sched.clock = f.clock

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sched.Run(runCtx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type fakeSender struct {
	got []*events.Reminder
	err error
}

func (s *fakeSender) SendDueReminder(_ context.Context, r *events.Reminder) error {
	s.got = append(s.got, r)
	return s.err
}

func TestReminderHandler(t *testing.T) {
	sender := &fakeSender{}
	handle := ReminderHandler(sender)

	other := events.New(events.TransactionCreated, "t1", "ana")
	if err := handle(ctx, &other); err != nil {
		t.Fatal(err)
	}
	if len(sender.got) != 0 {
		t.Fatal("non reminder events are ignored")
	}

	e := events.New(events.DueReminder, "t1", "ana")
	e.Reminder = &events.Reminder{TransactionID: "t1", Email: "ana@example.com"}
	if err := handle(ctx, &e); err != nil {
		t.Fatal(err)
	}
	if len(sender.got) != 1 {
		t.Fatalf("sent = %d", len(sender.got))
	}

	sender.err = errors.New("smtp down")
	if err := handle(ctx, &e); err == nil || !strings.Contains(err.Error(), "t1") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestEmailServiceSend(t *testing.T) {
	var got emailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mail := NewEmailService("re_test", "", "https://app.example.com")
	mail.endpoint = srv.URL

	if err := mail.SendPartnerInvitation(ctx, "bob@example.com", "Ana", "tok"); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer re_test" {
		t.Fatalf("authorization = %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "bob@example.com" || !strings.Contains(got.Subject, "Ana") {
		t.Fatalf("request = %+v", got)
	}
	if !strings.Contains(got.HTML, "https://app.example.com/parceiro/aceitar?token=tok") {
		t.Fatal("invitation link missing from body")
	}

	r := &events.Reminder{Email: "ana@example.com", Name: "Ana", Description: "Luz", Amount: dec("180"), DueDate: "2025-03-12"}
	if err := mail.SendDueReminder(ctx, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.HTML, "180.00") || !strings.Contains(got.Subject, "Luz") {
		t.Fatalf("reminder request = %+v", got)
	}
}

func TestEmailServiceErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"invalid recipient", http.StatusUnprocessableEntity, true},
		{"bad key", http.StatusUnauthorized, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			mail := NewEmailService("re_test", "", "")
			mail.endpoint = srv.URL
			err := mail.SendPartnerInvitation(ctx, "bob@example.com", "Ana", "tok")
			if err == nil {
				t.Fatal("expected an error for a non 2xx status")
			}
			if got := errors.Is(err, events.ErrPermanent); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v (%v)", got, tt.permanent, err)
			}
		})
	}

	noKey := NewEmailService("", "", "")
	noKey.endpoint = "http://127.0.0.1:0"
	if err := noKey.SendPartnerInvitation(ctx, "bob@example.com", "Ana", "tok"); err != nil {
		t.Fatalf("without a key the email is skipped: %v", err)
	}
}

func TestReminderHandlerKeepsPermanentFailures(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("email API returned status: 422: %w", events.ErrPermanent)}
	e := events.New(events.DueReminder, "t1", "ana")
	e.Reminder = &events.Reminder{TransactionID: "t1", Email: "not-an-email"}
	if err := ReminderHandler(sender)(ctx, &e); !errors.Is(err, events.ErrPermanent) {
		t.Fatalf("err = %v, want permanent", err)
	}
}
