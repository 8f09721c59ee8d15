package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("items required"), http.StatusBadRequest},
		{NewNotFoundError("payment"), http.StatusNotFound},
		{NewUnauthorizedError("invalid token", errors.New("expired")), http.StatusUnauthorized},
		{NewForbiddenError("not yours"), http.StatusForbidden},
		{NewSignatureError(errors.New("bad sig")), http.StatusBadRequest},
		{NewGatewayError(PaymentMethodStripe, errors.New("card_declined")), http.StatusInternalServerError},
		{NewDeclinedError("capture not completed"), http.StatusBadRequest},
		{NewConflictError("cannot cancel", ErrInvalidTransition), http.StatusConflict},
		{NewPersistenceError("save payment", errors.New("connection refused")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestAppErrorMessages(t *testing.T) {
	gw := NewGatewayError(PaymentMethodPayPal, errors.New("INSTRUMENT_DECLINED"))
	assert.Equal(t, "paypal gateway error: INSTRUMENT_DECLINED", gw.PublicMessage())

	persist := NewPersistenceError("save payment", errors.New("dial tcp 10.0.0.1:27017"))
	assert.Equal(t, "failed to save payment", persist.PublicMessage())
	assert.Contains(t, persist.Error(), "dial tcp")

	forbidden := NewForbiddenError("you do not have access to this payment")
	assert.Equal(t, "you do not have access to this payment", forbidden.PublicMessage())
	assert.True(t, errors.Is(forbidden, ErrForbidden))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create payment: %w", NewValidationError("items required"))
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestAuthorizeOwner(t *testing.T) {
	assert.NoError(t, AuthorizeOwner(Caller{ID: "c1", Role: RoleClient}, "c1"))
	assert.NoError(t, AuthorizeOwner(Caller{ID: "admin", Role: RoleAdmin}, "c1"))
	assert.Equal(t, KindForbidden, KindOf(AuthorizeOwner(Caller{ID: "c2", Role: RoleClient}, "c1")))
	assert.Equal(t, KindForbidden, KindOf(AuthorizeOwner(Caller{}, "")))
}
