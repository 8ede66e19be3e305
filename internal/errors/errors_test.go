package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "resource not found"},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestFlowErrorPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  ErrorCode
	}{
		{"csrf", CsrfOrExpired("state mismatch"), IsCsrfOrExpired, ErrCodeCsrfOrExpired},
		{"no flow", NoActiveFlow("no flow"), IsNoActiveFlow, ErrCodeNoActiveFlow},
		{"rejected", ProviderRejected("access_denied", "user said no", nil), IsProviderRejected, ErrCodeProviderRejected},
		{"unreachable", ProviderUnreachable(errors.New("dial")), IsProviderUnreachable, ErrCodeProviderUnreachable},
		{"not authenticated", NotAuthenticated("no session"), IsNotAuthenticated, ErrCodeNotAuthenticated},
		{"not configured", NotConfigured("no secret"), IsNotConfigured, ErrCodeNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.Equal(t, tt.code, GetCode(wrapped))
		})
	}
	assert.False(t, IsNotConfigured(NotAuthenticated("x")))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
}

func TestGetProviderDetail(t *testing.T) {
	err := fmt.Errorf("complete: %w", ProviderRejected("access_denied", "denied", nil))
	detail := GetProviderDetail(err)
	if assert.NotNil(t, detail) {
		assert.Equal(t, "access_denied", detail.Code)
		assert.Equal(t, "denied", detail.Description)
	}
	assert.Nil(t, GetProviderDetail(errors.New("plain")))
}

func TestValidationField(t *testing.T) {
	err := ValidationField("redirect_uri", "must be relative")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "redirect_uri", err.Field)
	assert.True(t, IsValidation(Validationf("bad %s", "x")))
}
