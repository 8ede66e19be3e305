package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
)

// statusFor maps an application error to an HTTP status and a stable error code.
// Unknown errors are server-class.
func statusFor(err error) (int, string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeCsrfOrExpired:
		return http.StatusBadRequest, "invalid_state"
	case apperrors.ErrCodeNoActiveFlow:
		return http.StatusBadRequest, "no_active_flow"
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, "invalid_request"
	case apperrors.ErrCodeProviderRejected:
		return http.StatusUnauthorized, "provider_rejected"
	case apperrors.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized, "not_authenticated"
	case apperrors.ErrCodeProviderUnreachable:
		return http.StatusBadGateway, "provider_unreachable"
	case apperrors.ErrCodeNotConfigured:
		return http.StatusInternalServerError, "not_configured"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeAppError renders err as JSON. Provider rejections carry the provider's
// error and error_description; internal errors are logged and never echoed.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusFor(err)

	if detail := apperrors.GetProviderDetail(err); detail != nil && code == "provider_rejected" {
		WriteJSON(w, status, detail)
		return
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		WriteJSON(w, status, map[string]string{"error": code})
		return
	}
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	WriteJSON(w, status, map[string]string{"error": code, "message": msg})
}
