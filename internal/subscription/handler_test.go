package subscription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/mailroom/internal/logger"
	"github.com/yanizio/mailroom/internal/metrics"
)

// memStore is an in-memory Repository.
type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Record
	err  error
}

func newMemStore() *memStore { return &memStore{rows: make(map[uuid.UUID]Record)} }

func (m *memStore) Insert(_ context.Context, rec Record) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.rows[rec.ID]; dup {
		return &PersistenceError{Err: errors.New("duplicate id")}
	}
	m.rows[rec.ID] = rec
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func postForm(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_ValidSubmissionPersists(t *testing.T) {
	store := newMemStore()
	h := NewHandler(store, zap.NewNop())
	before := testutil.ToFloat64(metrics.SubscriptionsTotal.WithLabelValues(metrics.OutcomeOK))

	rr := postForm(h, "name=le%20guin&email=le_guin%40gmail.com")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", rr.Body.String())
	}
	if store.len() != 1 {
		t.Fatalf("rows = %d, want 1", store.len())
	}
	for _, rec := range store.rows {
		if rec.Name != "le guin" || rec.Email != "le_guin@gmail.com" {
			t.Fatalf("unexpected row: %#v", rec)
		}
		if rec.ID.Version() != 4 {
			t.Fatalf("id version = %d, want 4", rec.ID.Version())
		}
		if rec.SubscribedAt.Location().String() != "UTC" {
			t.Fatalf("subscribed_at not UTC: %v", rec.SubscribedAt)
		}
	}
	if got := testutil.ToFloat64(metrics.SubscriptionsTotal.WithLabelValues(metrics.OutcomeOK)); got != before+1 {
		t.Fatalf("ok counter = %v, want %v", got, before+1)
	}
}

func TestHandler_InvalidSubmissionsRejected(t *testing.T) {
	cases := map[string]string{
		"missing the email":     "name=le%20guin",
		"missing the name":      "email=ursula_le_guin%40gmail.com",
		"missing both":          "",
		"blank name":            "name=%20%20&email=x%40y.com",
		"malformed email":       "name=le%20guin&email=not-an-email",
		"undecodable form body": "name=%zz&email=x%40y.com",
	}

	core, logs := observer.New(zapcore.DebugLevel)
	store := newMemStore()
	h := NewHandler(store, zap.New(core))

	for desc, body := range cases {
		rr := postForm(h, body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", desc, rr.Code)
		}
	}
	if store.len() != 0 {
		t.Fatalf("rows = %d, want 0", store.len())
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Fatalf("client errors logged at error level %d times", n)
	}
}

func TestHandler_UndecodableBodyLoggedWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(newMemStore(), zap.New(core))

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader("name=%zz&email=x%40y.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(logger.WithRequestID(req.Context(), id))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	entries := logs.FilterMessage("subscription rejected").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != id.String() {
		t.Fatalf("request_id = %v, want %s", got, id)
	}
}

func TestHandler_PersistenceFailureIs500AndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := newMemStore()
	store.err = &PersistenceError{Err: errors.New("connection refused")}
	h := NewHandler(store, zap.New(core))

	rr := postForm(h, "name=le%20guin&email=le_guin%40gmail.com")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(errs) != 1 {
		t.Fatalf("error entries = %d, want 1", len(errs))
	}
	fields := errs[0].ContextMap()
	if fields["subscriber_email"] != "le_guin@gmail.com" || fields["subscriber_name"] != "le guin" {
		t.Fatalf("span fields missing: %v", fields)
	}
	if !strings.Contains(fields["error"].(string), "connection refused") {
		t.Fatalf("error detail missing: %v", fields["error"])
	}
}

func TestHandler_ConcurrentSubmissionsGetDistinctIDs(t *testing.T) {
	const n = 32
	store := newMemStore()
	h := NewHandler(store, zap.NewNop())

	var g errgroup.Group
	for i := 0; i < n; i++ {
		body := url.Values{
			"name":  {"reader"},
			"email": {"reader" + uuid.NewString()[:8] + "@example.com"},
		}.Encode()
		g.Go(func() error {
			if rr := postForm(h, body); rr.Code != http.StatusOK {
				return errors.New(http.StatusText(rr.Code))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	if store.len() != n {
		t.Fatalf("rows = %d, want %d", store.len(), n)
	}
}

func TestHandler_WithPostgresStore(t *testing.T) {
	pg, mock := newStore(t)
	h := NewHandler(pg, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta(wantInsert)).
		WithArgs(sqlmock.AnyArg(), "le_guin@gmail.com", "le guin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := postForm(h, "name=le%20guin&email=le_guin%40gmail.com")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
