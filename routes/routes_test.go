package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/handlers"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/services"
	"github.com/LovationAdmin/financas-api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	repo   *repository.Memory
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	repo := repository.NewMemory()
	pub := &events.Recorder{}
	tokens := utils.NewTokenIssuer("routes-test-secret-0123456789", 15*time.Minute)
	secrets := utils.NewSecretBox("")

	invoices := services.NewInvoiceService(repo, pub)
	goals := services.NewGoalService(repo, pub)
	shared := services.NewSharedService(repo, pub)
	points := services.NewPointsService(repo, pub)
	reports := services.NewReportService(repo)

	ws := handlers.NewWSHandler()
	t.Cleanup(func() { _ = ws.Close() })

	h := Handlers{
		Auth:        handlers.NewAuthHandler(services.NewAuthService(repo, tokens, secrets, time.Hour)),
		User:        handlers.NewUserHandler(services.NewUserService(repo, secrets, pub)),
		Partner:     handlers.NewPartnerHandler(services.NewPartnerService(repo, nil, pub)),
		Category:    handlers.NewCategoryHandler(services.NewCategoryService(repo, pub)),
		Card:        handlers.NewCardHandler(services.NewCardService(repo, pub), invoices),
		Transaction: handlers.NewTransactionHandler(services.NewTransactionService(repo, pub), shared),
		Points:      handlers.NewPointsHandler(points),
		Goal:        handlers.NewGoalHandler(goals),
		Report: handlers.NewReportHandler(reports, services.NewExportService(repo, reports),
			services.NewDashboardService(repo, invoices, goals, shared, points)),
		WS: ws,
	}
	return &testServer{t: t, router: NewRouter(opts, tokens, h), repo: repo}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

// signup creates an account and returns its access token.
func (s *testServer) signup(email string) (string, models.User) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "secret1", "name": strings.Split(email, "@")[0]})
	expectStatus(s.t, w, http.StatusCreated)
	resp := decode[models.AuthResponse](s.t, w)
	return resp.AccessToken, resp.User
}

func (s *testServer) expenseCategory(token string) string {
	s.t.Helper()
	w := s.do(http.MethodGet, "/api/categorias?tipo=despesa", token, nil)
	expectStatus(s.t, w, http.StatusOK)
	cats := decode[[]models.Category](s.t, w)
	if len(cats) == 0 {
		s.t.Fatal("no default expense category")
	}
	return cats[0].ID
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)
	if body := decode[map[string]any](t, w); body["status"] != "healthy" {
		t.Fatalf("health = %v", body)
	}

	expectStatus(t, s.do(http.MethodGet, "/api/nada", "", nil), http.StatusNotFound)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, Options{})

	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos", "not-a-jwt", nil), http.StatusUnauthorized)

	token, _ := s.signup("ana@example.com")
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos", token, nil), http.StatusOK)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, Options{})

	expectStatus(t, s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "nope", "password": "secret1", "name": "Ana"}), http.StatusBadRequest)

	token, user := s.signup("ana@example.com")
	expectStatus(t, s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "ana@example.com", "password": "secret1", "name": "Ana"}), http.StatusConflict)
	expectStatus(t, s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong"}), http.StatusUnauthorized)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "secret1"})
	expectStatus(t, w, http.StatusOK)
	login := decode[models.AuthResponse](t, w)

	w = s.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": login.RefreshToken})
	expectStatus(t, w, http.StatusOK)
	expectStatus(t, s.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": login.RefreshToken}), http.StatusUnauthorized)

	w = s.do(http.MethodGet, "/api/usuarios/me", token, nil)
	expectStatus(t, w, http.StatusOK)
	if me := decode[models.User](t, w); me.ID != user.ID || me.Email != "ana@example.com" {
		t.Fatalf("me = %+v", me)
	}

	w = s.do(http.MethodPost, "/api/usuarios/me/senha", token, gin.H{"current_password": "bad", "new_password": "secret2"})
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if body := decode[map[string]any](t, w); body["field"] != "current_password" {
		t.Fatalf("validation body = %v", body)
	}
}

func TestTransactionRoutes(t *testing.T) {
	s := newTestServer(t, Options{})
	token, _ := s.signup("ana@example.com")
	category := s.expenseCategory(token)

	req := gin.H{
		"description":    "Mercado",
		"amount":         "120.50",
		"type":           models.TypeExpense,
		"category_id":    category,
		"payment_method": models.MethodPix,
		"date":           "2025-03-05",
	}
	w := s.do(http.MethodPost, "/api/lancamentos", token, req)
	expectStatus(t, w, http.StatusCreated)
	rows := decode[[]models.Transaction](t, w)
	if len(rows) != 1 || !rows[0].Amount.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("created = %+v", rows)
	}
	id := rows[0].ID

	bad := gin.H{"description": "x", "amount": "10", "type": models.TypeExpense, "category_id": "missing", "payment_method": models.MethodPix, "date": "2025-03-05"}
	expectStatus(t, s.do(http.MethodPost, "/api/lancamentos", token, bad), http.StatusUnprocessableEntity)

	w = s.do(http.MethodGet, "/api/lancamentos?mes=2025-03&pago=false", token, nil)
	expectStatus(t, w, http.StatusOK)
	list := decode[models.TransactionList](t, w)
	if len(list.Items) != 1 || !list.Totals.Pending.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("list = %+v", list)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos?mes=março", token, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos?pago=talvez", token, nil), http.StatusBadRequest)

	w = s.do(http.MethodPatch, "/api/lancamentos/"+id+"/pago", token, gin.H{"paid": true})
	expectStatus(t, w, http.StatusOK)
	if tx := decode[models.Transaction](t, w); !tx.Paid || tx.PaidAt == nil {
		t.Fatalf("set paid = %+v", tx)
	}
	expectStatus(t, s.do(http.MethodPatch, "/api/lancamentos/"+id+"/pago", token, gin.H{}), http.StatusBadRequest)

	other, _ := s.signup("eve@example.com")
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos/"+id, other, nil), http.StatusNotFound)

	w = s.do(http.MethodDelete, "/api/lancamentos/"+id, token, nil)
	expectStatus(t, w, http.StatusOK)
	if body := decode[map[string][]string](t, w); len(body["deleted"]) != 1 {
		t.Fatalf("deleted = %v", body)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/lancamentos/"+id, token, nil), http.StatusNotFound)
}

func TestSharedRoutes(t *testing.T) {
	s := newTestServer(t, Options{})
	ana, _ := s.signup("ana@example.com")
	bob, _ := s.signup("bob@example.com")

	w := s.do(http.MethodPost, "/api/usuarios/parceiro/convite", ana, gin.H{"email": "bob@example.com"})
	expectStatus(t, w, http.StatusCreated)
	inv := decode[services.InvitationResult](t, w)
	expectStatus(t, s.do(http.MethodPost, "/api/usuarios/parceiro/aceitar", bob, gin.H{"token": inv.Token}), http.StatusOK)

	w = s.do(http.MethodPost, "/api/lancamentos", ana, gin.H{
		"description":    "Jantar",
		"amount":         "100",
		"type":           models.TypeExpense,
		"category_id":    s.expenseCategory(ana),
		"payment_method": models.MethodPix,
		"date":           "2025-03-05",
		"shared":         true,
		"split_mode":     models.SplitEqual,
	})
	expectStatus(t, w, http.StatusCreated)
	id := decode[[]models.Transaction](t, w)[0].ID

	w = s.do(http.MethodGet, "/api/lancamentos/compartilhado?mes=2025-03", bob, nil)
	expectStatus(t, w, http.StatusOK)
	summary := decode[models.SharedSummary](t, w)
	if !summary.Balance.Net.Equal(decimal.NewFromInt(-50)) || summary.Balance.PendingCount != 1 {
		t.Fatalf("bob balance = %+v", summary.Balance)
	}

	expectStatus(t, s.do(http.MethodPost, "/api/lancamentos/compartilhado/"+id+"/pagar", ana, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodPost, "/api/lancamentos/compartilhado/"+id+"/pagar", bob, nil), http.StatusOK)

	w = s.do(http.MethodGet, "/api/lancamentos/compartilhado?mes=2025-03", ana, nil)
	expectStatus(t, w, http.StatusOK)
	if summary := decode[models.SharedSummary](t, w); !summary.Balance.Net.IsZero() {
		t.Fatalf("ana balance after payment = %+v", summary.Balance)
	}

	expectStatus(t, s.do(http.MethodDelete, "/api/usuarios/parceiro", bob, nil), http.StatusNoContent)
	expectStatus(t, s.do(http.MethodGet, "/api/usuarios/parceiro", ana, nil), http.StatusNotFound)
}

func TestPlanLimitsAndExport(t *testing.T) {
	s := newTestServer(t, Options{})
	token, _ := s.signup("ana@example.com")

	card := gin.H{"name": "Nubank", "limit": "3000", "closing_day": 5, "due_day": 15}
	expectStatus(t, s.do(http.MethodPost, "/api/cartoes", token, card), http.StatusCreated)
	expectStatus(t, s.do(http.MethodPost, "/api/cartoes", token, card), http.StatusCreated)
	expectStatus(t, s.do(http.MethodPost, "/api/cartoes", token, card), http.StatusPaymentRequired)
	expectStatus(t, s.do(http.MethodGet, "/api/relatorios/exportar", token, nil), http.StatusPaymentRequired)

	w := s.do(http.MethodPut, "/api/usuarios/subscription", token, gin.H{"plan": models.PlanPremium, "months": 1})
	expectStatus(t, w, http.StatusOK)
	if sub := decode[models.Subscription](t, w); sub.Plan != models.PlanPremium {
		t.Fatalf("subscription = %+v", sub)
	}
	expectStatus(t, s.do(http.MethodPost, "/api/cartoes", token, card), http.StatusCreated)

	w = s.do(http.MethodGet, "/api/relatorios/exportar?formato=pdf&inicio=2025-01&fim=2025-03", token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="relatorio_2025-01_2025-03.pdf"` {
		t.Fatalf("content disposition = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a pdf")
	}

	expectStatus(t, s.do(http.MethodGet, "/api/relatorios/exportar?formato=csv", token, nil), http.StatusUnprocessableEntity)
	expectStatus(t, s.do(http.MethodGet, "/api/relatorios/resumo?tipo=outro", token, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodGet, "/api/dashboard", token, nil), http.StatusOK)
}

func TestRateLimitOption(t *testing.T) {
	s := newTestServer(t, Options{RateLimitPerMinute: 2})

	expectStatus(t, s.do(http.MethodGet, "/health", "", nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodGet, "/health", "", nil), http.StatusOK)
	w := s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestAllowedOrigins(t *testing.T) {
	got := allowedOrigins(" https://a.example.com/ , https://b.example.com,")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("origins = %v", got)
	}
	if got := allowedOrigins(""); len(got) != 1 || got[0] != "http://localhost:5173" {
		t.Fatalf("default origins = %v", got)
	}
}
