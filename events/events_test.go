package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeAck struct {
	acked, nacked, requeued bool
	err                     error
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return f.err }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return f.err
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	ok := func(context.Context, *Event) error { return nil }
	failing := func(context.Context, *Event) error { return errors.New("email API returned status: 503") }
	rejected := func(context.Context, *Event) error {
		return fmt.Errorf("send reminder for t1: %w", fmt.Errorf("email API returned status: 422: %w", ErrPermanent))
	}
	reminder := `{"type":"lembrete.vencimento","user_id":"u1"}`

	tests := []struct {
		name        string
		body        string
		redelivered bool
		handler     func(context.Context, *Event) error
		acked       bool
		requeued    bool
	}{
		{"valid message", reminder, false, ok, true, false},
		{"malformed json", `{`, false, ok, false, false},
		{"missing type", `{"user_id":"u1"}`, false, ok, false, false},
		{"transient failure requeues", reminder, false, failing, false, true},
		{"transient failure on redelivery drops", reminder, true, failing, false, false},
		{"permanent failure drops", reminder, false, rejected, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			process(ctx, []byte(tt.body), tt.redelivered, ack, tt.handler)
			if ack.acked != tt.acked {
				t.Errorf("acked = %v, want %v", ack.acked, tt.acked)
			}
			if !tt.acked && !ack.nacked {
				t.Error("expected a nack")
			}
			if ack.requeued != tt.requeued {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.requeued)
			}
		})
	}
}

func TestProcessBoundsRetries(t *testing.T) {
	ctx := context.Background()
	failing := func(context.Context, *Event) error { return errors.New("email API returned status: 503") }
	body := []byte(`{"type":"lembrete.vencimento","user_id":"u1"}`)

	// A broker requeue marks the next delivery as redelivered.
	deliveries, redelivered := 0, false
	for deliveries < 100 {
		deliveries++
		ack := &fakeAck{}
		process(ctx, body, redelivered, ack, failing)
		if !ack.requeued {
			break
		}
		redelivered = true
	}
	if deliveries != 2 {
		t.Fatalf("deliveries = %d, want 2", deliveries)
	}
}

func TestProcessLogsAckErrors(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	body := []byte(`{"type":"lembrete.vencimento","user_id":"u1"}`)
	ok := func(context.Context, *Event) error { return nil }
	failing := func(context.Context, *Event) error { return errors.New("boom") }

	tests := []struct {
		name    string
		handler func(context.Context, *Event) error
		want    string
	}{
		{"ack", ok, "failed to ack delivery"},
		{"nack", failing, "failed to nack delivery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			process(ctx, body, false, &fakeAck{err: errors.New("channel/connection is not open")}, tt.handler)
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("log = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestFromJSONRestoresRecipients(t *testing.T) {
	e := New(DueReminder, "t1", "u1", "u2")
	body, err := e.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := FromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.UserIDs) != 1 || got.UserIDs[0] != "u1" {
		t.Fatalf("unexpected recipients %v", got.UserIDs)
	}
}

func TestNewSkipsEmptyAndDuplicateRecipients(t *testing.T) {
	e := New(TransactionCreated, "t1", "u1", "", "u1", "u2")
	if len(e.UserIDs) != 2 || e.UserIDs[0] != "u1" || e.UserIDs[1] != "u2" {
		t.Fatalf("unexpected recipients %v", e.UserIDs)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("boom")
}

func TestMultiPublishesToAll(t *testing.T) {
	bad := &failingPublisher{}
	rec := &Recorder{}
	err := Multi{bad, nil, rec, Noop{}}.Publish(context.Background(), New(CardChanged, "c1", "u1"))
	if err == nil {
		t.Fatal("expected the failure to be reported")
	}
	if bad.calls != 1 || len(rec.Events) != 1 {
		t.Fatalf("every publisher should be called, got %d and %d", bad.calls, len(rec.Events))
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{12, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := Backoff(tt.attempt); got != tt.expected {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.expected {
			t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}
