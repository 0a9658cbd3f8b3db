// internal/subscription/handler.go
//
// HTTP handler for POST /subscriptions.
//
// Flow
//   Received → Validated → Persisted → Acknowledged (200, empty body)
//   Received → Rejected  (400, nothing stored, logged at info)
//   Validated → Failed   (500, logged at error with the driver detail)
//
// The handler opens a span before reading the body, so even an undecodable
// submission is logged with the request id.  Once parsed, the submitted name
// and email join the span's fields, and the store logs through it via
// context.
//
//------------------------------------------------------------------------------

package subscription

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/logger"
	"github.com/yanizio/mailroom/internal/metrics"
)

// Handler serves the write path.  Build it with NewHandler.
type Handler struct {
	store Repository
	log   *zap.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

// NewHandler wires store and log.  log must not be nil.
func NewHandler(store Repository, log *zap.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.New,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpan(r.Context(), h.log, "adding a new subscriber")
	defer span.End()
	log := logger.FromContext(ctx)

	form, err := rawForm(r)
	if err != nil {
		h.reject(w, log, err)
		return
	}

	log = log.With(
		zap.String("subscriber_email", form.Email),
		zap.String("subscriber_name", form.Name),
	)
	ctx = logger.WithContext(ctx, log)

	if err := form.Validate(); err != nil {
		h.reject(w, log, err)
		return
	}

	rec := NewRecord(form, h.newID(), h.now())
	log.Debug("saving new subscriber", zap.Stringer("subscriber_id", rec.ID))

	start := time.Now()
	err = h.store.Insert(ctx, rec)
	metrics.SubscriptionInsertSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.Stringer("subscriber_id", rec.ID)}
		var pe *PersistenceError
		if errors.As(err, &pe) {
			code, constraint := pe.PgCode()
			fields = append(fields,
				zap.Bool("acquire_timeout", pe.Timeout()),
				zap.String("pg_code", code),
				zap.String("constraint", constraint),
			)
		}
		log.Error("failed to execute query", fields...)
		metrics.SubscriptionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	log.Info("new subscriber saved", zap.Stringer("subscriber_id", rec.ID))
	metrics.SubscriptionsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	w.WriteHeader(http.StatusOK)
}

// reject answers 400.  Bad input is expected traffic, so it is not an error
// in the log.
func (h *Handler) reject(w http.ResponseWriter, log *zap.Logger, err error) {
	log.Info("subscription rejected", zap.String("reason", err.Error()))
	metrics.SubscriptionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}
