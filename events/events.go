// Package events carries change notifications out of the services: to open
// websocket sessions for optimistic-update reconciliation and to the AMQP queue
// that feeds the reminder worker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionCreated = "lancamento.criado"
	TransactionUpdated = "lancamento.atualizado"
	TransactionDeleted = "lancamento.excluido"
	TransactionPaid    = "lancamento.pago"

	SplitPaid     = "divisao.paga"
	SharedSettled = "compartilhado.acertado"

	CategoryChanged = "categoria.alterada"
	CardChanged     = "cartao.alterado"

	InvoicePaid     = "fatura.paga"
	InvoiceReopened = "fatura.reaberta"
	InvoiceClosed   = "fatura.fechada"

	GoalChanged   = "meta.alterada"
	PointsChanged = "pontos.alterados"

	PartnerLinked   = "parceiro.vinculado"
	PartnerUnlinked = "parceiro.desvinculado"

	// DueReminder is published by the scheduler and consumed by the worker.
	DueReminder = "lembrete.vencimento"
)

// Event is what gets broadcast. UserIDs are the accounts that must hear about it;
// UserID is who caused it.
type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entity_id,omitempty"`
	UserID   string    `json:"user_id"`
	UserIDs  []string  `json:"-"`
	At       time.Time `json:"at"`
	Reminder *Reminder `json:"reminder,omitempty"`
}

// Reminder is the payload of a DueReminder event.
type Reminder struct {
	TransactionID string          `json:"transaction_id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       string          `json:"due_date"`
}

// New builds an event caused by userID that concerns every id in notify plus the
// actor. Empty ids are skipped.
func New(typ, entityID, userID string, notify ...string) Event {
	ids := []string{userID}
	for _, id := range notify {
		if id != "" && id != userID {
			ids = append(ids, id)
		}
	}
	return Event{Type: typ, EntityID: entityID, UserID: userID, UserIDs: ids, At: time.Now().UTC()}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		return nil, errors.New("event without type")
	}
	if len(e.UserIDs) == 0 && e.UserID != "" {
		e.UserIDs = []string{e.UserID}
	}
	return &e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers. A failing publisher is logged and
// does not stop the others.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			slog.WarnContext(ctx, "event publish failed", "type", e.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory. Tests use it to assert on what a
// service announced.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.Events = append(r.Events, e)
	return nil
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
