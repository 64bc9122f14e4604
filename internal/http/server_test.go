package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeptrack/internal/auth"
	"keeptrack/internal/core"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/storage"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	srv      *Server
	provider *auth.Provider
	sessions *ledger.Sessions
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	kv := storage.NewMemory()
	now := func() time.Time { return testNow }

	provider, err := auth.NewProvider(auth.Options{
		Secret: "http-test-secret-0123456789",
		TTL:    time.Hour,
		KV:     kv,
		Logger: log.Nop(),
		Now:    now,
	})
	require.NoError(t, err)

	sessions := ledger.NewSessions(func(owner string) *ledger.Store {
		return ledger.NewStore(ledger.Options{
			Owner:  owner,
			KV:     storage.Namespace(kv, owner),
			Logger: log.Nop(),
			Now:    now,
		})
	}, false, log.Nop())

	deps := Deps{
		Sessions:     sessions,
		Auth:         provider,
		AllowOffline: true,
		Logger:       log.Nop(),
		Now:          now,
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &fixture{srv: srv, provider: provider, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func lunch() map[string]any {
	return map[string]any{
		"type": "expense", "amount": "12.50", "category": "Food",
		"description": "lunch", "date": "2024-03-14",
	}
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Checks = map[string]ReadyCheck{"storage": func(context.Context) error { return nil }}
	})

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ready", body["status"])

	failing := newFixture(t, func(d *Deps) {
		d.Checks = map[string]ReadyCheck{"remote": func(context.Context) error { return errors.New("unreachable") }}
	})
	rr = failing.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unreachable")
}

func TestSecurityHeaders(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.True(t, strings.HasPrefix(rr.Header().Get(requestIDHeader), "req_"))
}

func TestTransactionLifecycle_Offline(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/transactions", "", lunch())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Transaction](t, rr)
	assert.Equal(t, core.Offline, created.OwnerID)
	assert.Equal(t, "12.5", created.Amount.String())
	assert.Equal(t, "/transactions/"+created.ID, rr.Header().Get("Location"))

	rr = f.do(t, http.MethodGet, "/transactions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPatch, "/transactions/"+created.ID, "", map[string]any{"amount": 20, "category": "Dining"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[core.Transaction](t, rr)
	assert.Equal(t, "20", updated.Amount.String())
	assert.Equal(t, "Dining", updated.Category)
	assert.Equal(t, "lunch", updated.Description)

	rr = f.do(t, http.MethodGet, "/transactions?search=din", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[transactionList](t, rr)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "20", list.Totals.Expense.String())
	assert.Equal(t, core.DefaultCurrency, list.Currency)

	rr = f.do(t, http.MethodDelete, "/transactions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodDelete, "/transactions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactionErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/transactions", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/transactions", `{"kind":"expense"}`, http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/transactions", map[string]any{"type": "expense", "amount": "abc", "category": "Food", "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"zero amount", http.MethodPost, "/transactions", map[string]any{"type": "expense", "amount": 0, "category": "Food", "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"missing category", http.MethodPost, "/transactions", map[string]any{"type": "expense", "amount": 5, "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"missing date", http.MethodPost, "/transactions", map[string]any{"type": "income", "amount": 5, "category": "Gift"}, http.StatusUnprocessableEntity},
		{"bad type", http.MethodPost, "/transactions", map[string]any{"type": "loan", "amount": 5, "category": "X", "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"patch missing id", http.MethodPatch, "/transactions/nope", map[string]any{"amount": 3}, http.StatusNotFound},
		{"get missing id", http.MethodGet, "/transactions/nope", nil, http.StatusNotFound},
		{"bad filter", http.MethodGet, "/transactions?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, "", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if rr.Code >= 400 {
				assert.NotEmpty(t, decode[ErrorBody](t, rr).Error)
			}
		})
	}
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.AllowOffline = false })

	rr := f.do(t, http.MethodGet, "/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	rr = f.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := decode[auth.Session](t, rr)

	rr = f.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = f.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "bad", "password": "secret1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = f.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ann@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/transactions", session.Token, lunch())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, session.Owner, decode[core.Transaction](t, rr).OwnerID)

	rr = f.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)
	other := decode[auth.Session](t, rr)

	rr = f.do(t, http.MethodPost, "/auth/signout", session.Token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodGet, "/transactions", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/transactions", other.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[transactionList](t, rr).Count)
}

func TestOwnersAreIsolated(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.provider.SignUp(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	b, err := f.provider.SignUp(context.Background(), "b@example.com", "secret1")
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/transactions", a.Token, lunch())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[core.Transaction](t, rr).ID

	rr = f.do(t, http.MethodGet, "/transactions", b.Token, nil)
	assert.Equal(t, 0, decode[transactionList](t, rr).Count)
	rr = f.do(t, http.MethodDelete, "/transactions/"+id, b.Token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDashboardFollowsChanges(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/transactions", "", map[string]any{
		"type": "income", "amount": 100, "category": "Salary", "date": "2024-03-15",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, http.MethodGet, "/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[dashboardResponse](t, rr)
	assert.Equal(t, "100", first.Totals.Balance.String())
	assert.Equal(t, "100", first.Today.Income.String())
	assert.Equal(t, 1, f.srv.dashboardCache.Size())

	rr = f.do(t, http.MethodPost, "/transactions", "", lunch())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, http.MethodGet, "/dashboard", "", nil)
	second := decode[dashboardResponse](t, rr)
	assert.Equal(t, "87.5", second.Totals.Balance.String())
	assert.Equal(t, 2, second.TransactionSize)
	assert.Len(t, second.Recent, 2)
}

func TestDashboardAfterSignOutAndSignIn(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.AllowOffline = false })
	f.provider.Subscribe(func(ctx context.Context, ev auth.Event) {
		switch ev.Kind {
		case auth.SignedIn:
			require.NoError(t, f.sessions.SignedIn(ctx, ev.Owner))
		case auth.SignedOut:
			f.sessions.SignedOut(ctx, ev.Owner)
		}
	})
	creds := map[string]string{"email": "dee@example.com", "password": "secret1"}

	rr := f.do(t, http.MethodPost, "/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := decode[auth.Session](t, rr)

	rr = f.do(t, http.MethodGet, "/dashboard", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[dashboardResponse](t, rr).TransactionSize)

	rr = f.do(t, http.MethodPost, "/transactions", session.Token, lunch())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/signout", session.Token, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodPost, "/auth/signin", "", creds)
	require.Equal(t, http.StatusOK, rr.Code)
	session = decode[auth.Session](t, rr)

	rr = f.do(t, http.MethodGet, "/transactions", session.Token, nil)
	assert.Equal(t, 1, decode[transactionList](t, rr).Count)
	rr = f.do(t, http.MethodGet, "/dashboard", session.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[dashboardResponse](t, rr).TransactionSize)
}

func TestStatsEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	for _, body := range []map[string]any{
		{"type": "income", "amount": 1000, "category": "Salary", "date": "2024-02-01"},
		{"type": "expense", "amount": 200, "category": "Rent", "date": "2024-02-03"},
		{"type": "expense", "amount": 50, "category": "Food", "date": "2024-03-02"},
	} {
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/transactions", "", body).Code)
	}

	rr := f.do(t, http.MethodGet, "/stats/totals?year=2024&month=2", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "800", decode[core.Totals](t, rr).Balance.String())

	rr = f.do(t, http.MethodGet, "/stats/totals?day=2024-03-02", "", nil)
	assert.Equal(t, "50", decode[core.Totals](t, rr).Expense.String())

	rr = f.do(t, http.MethodGet, "/stats/totals?month=13", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/stats/monthly", "", nil)
	months := decode[map[string][]core.MonthTotals](t, rr)["months"]
	require.Len(t, months, 2)

	rr = f.do(t, http.MethodGet, "/stats/balance", "", nil)
	points := decode[map[string][]core.BalancePoint](t, rr)["points"]
	require.Len(t, points, 3)
	assert.Equal(t, "750", points[2].Balance.String())

	rr = f.do(t, http.MethodGet, "/stats/breakdown", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Rent")
	rr = f.do(t, http.MethodGet, "/stats/breakdown?kind=loan", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/transactions/recent?limit=2", "", nil)
	assert.Equal(t, 2, decode[transactionList](t, rr).Count)
}

func TestBudgets(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/transactions", "", map[string]any{
		"type": "expense", "amount": 80, "category": "Food", "date": "2024-03-01",
	}).Code)

	rr := f.do(t, http.MethodPut, "/budgets", "", map[string]any{"category": "Food", "amount": "100"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode[core.Budget](t, rr)
	assert.Equal(t, core.PeriodMonthly, b.Period)

	rr = f.do(t, http.MethodGet, "/budgets", "", nil)
	list := decode[budgetList](t, rr)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "warning", string(list.Reports[0].Status))
	assert.Len(t, list.Alerts, 1)

	rr = f.do(t, http.MethodPut, "/budgets", "", map[string]any{"category": "Food", "amount": "100", "period": "daily"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodDelete, "/budgets/"+b.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodDelete, "/budgets/"+b.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBudgetAlertsLoggedOnEveryView(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, func(d *Deps) { d.Logger = log.New(log.Config{Output: &buf}) })
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/transactions", "", map[string]any{
		"type": "expense", "amount": 120, "category": "Food", "date": "2024-03-01",
	}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/budgets", "", map[string]any{"category": "Food", "amount": "100"}).Code)
	buf.Reset()

	for range 2 {
		rr := f.do(t, http.MethodGet, "/dashboard", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[dashboardResponse](t, rr).Alerts, 1)
	}
	assert.Equal(t, 1, f.srv.dashboardCache.Size())
	assert.Equal(t, 2, strings.Count(buf.String(), "Budget alert"))

	f.do(t, http.MethodGet, "/budgets", "", nil)
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "Budget alert"))
	assert.Contains(t, out, "budget_status=exceeded")
	assert.Contains(t, out, "owner="+core.Offline)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/transactions", "", lunch()).Code)

	rr := f.do(t, http.MethodGet, "/export/csv", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "transactions-2024-03-15.csv")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Type,Amount,Category,Description,Date"))

	rr = f.do(t, http.MethodGet, "/export/txt?type=income", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "lunch")

	rr = f.do(t, http.MethodGet, "/export/docx", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCurrencyAndCategories(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/settings/currency", "", nil)
	assert.Equal(t, core.DefaultCurrency, decode[currencyRequest](t, rr).Currency)

	rr = f.do(t, http.MethodPut, "/settings/currency", "", map[string]string{"currency": "€"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "€", decode[currencyRequest](t, rr).Currency)

	rr = f.do(t, http.MethodPut, "/settings/currency", "", map[string]string{"currency": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodGet, "/categories?type=income", "", nil)
	cats := decode[map[string][]string](t, rr)
	assert.Contains(t, cats["income"], "Salary")
	assert.NotContains(t, cats, "expense")
}

func TestRateLimitOnWrites(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/transactions", "", lunch()).Code)
	}
	rr := f.do(t, http.MethodPost, "/transactions", "", lunch())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// reads are never limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/transactions", "", nil).Code)
}

func TestWithoutAuthenticator(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Auth = nil
		d.AllowOffline = false
	})

	rr := f.do(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/transactions", "", nil).Code)
}
