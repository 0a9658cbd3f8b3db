// internal/subscription/model.go
//
// Subscription write path: inbound form and persisted record.
//
// Context
//   A browser (or any client) posts an url-encoded form with `name` and
//   `email`.  rawForm turns the request body into a trimmed Form, and
//   Form.Validate checks it with go-playground/validator.  NewRecord stamps
//   a valid Form with a fresh v4 id and the UTC insertion time.
//
//   Record carries `db` tags.  The store binds by those names, never by
//   position, so column order in the table cannot silently swap fields.
//
//------------------------------------------------------------------------------

package subscription

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalidForm is wrapped by every client-side failure.
var ErrInvalidForm = errors.New("invalid subscription form")

// Form is the decoded POST /subscriptions body.
type Form struct {
	Name  string `validate:"required,max=256"`
	Email string `validate:"required,email,max=320"`
}

// Record is one row of the subscriptions table.  Immutable once inserted.
type Record struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	SubscribedAt time.Time `db:"subscribed_at"`
}

// NewRecord builds the row for f.  at is converted to UTC.
func NewRecord(f Form, id uuid.UUID, at time.Time) Record {
	return Record{
		ID:           id,
		Email:        f.Email,
		Name:         f.Name,
		SubscribedAt: at.UTC(),
	}
}

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

var validate = validator.New(validator.WithRequiredStructEnabled())

// rawForm parses r's url-encoded body and returns the two fields as sent.
// It does not validate.
func rawForm(r *http.Request) (Form, error) {
	if err := r.ParseForm(); err != nil {
		return Form{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return Form{
		Name:  strings.TrimSpace(r.PostForm.Get("name")),
		Email: strings.TrimSpace(r.PostForm.Get("email")),
	}, nil
}

// Validate reports the first broken rule as an ErrInvalidForm.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrInvalidForm, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidForm, err)
}
