package errors

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// FromError convierte cualquier error en AppError. Los errores tipados del
// core pasan por FromDomain; el resto es 500 conservando la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var de *types.Error
	if stderrors.As(err, &de) {
		return FromDomain(de)
	}
	return ErrInternalServerError.WithCause(err)
}

// FromDomain mapea un *types.Error a AppError. Code es el Kind y Detail el
// Reason; la causa interna nunca se serializa.
func FromDomain(e *types.Error) *AppError {
	base := statusFor(e.Kind)
	out := &AppError{
		Code:       string(e.Kind),
		Message:    base.Message,
		Detail:     e.Reason,
		HTTPStatus: base.HTTPStatus,
		Err:        e,
	}
	if e.Kind == types.KindInternal {
		out.Detail = ""
	}
	return out
}

func statusFor(k types.Kind) *AppError {
	switch k {
	case types.KindUnknownSigner, types.KindInvalidSignature, types.KindStaleRequest,
		types.KindUnsupportedAlgorithm, types.KindKeyRevoked:
		return ErrUnauthorized
	case types.KindReplayDetected, types.KindDuplicateVote, types.KindInvalidTransactionState,
		types.KindThresholdUnreachable:
		return ErrConflict
	case types.KindInvalidWalletConfiguration:
		return ErrUnprocessable
	case types.KindSignerNotEligible:
		return ErrForbidden
	case types.KindTransactionNotFound, types.KindWalletNotFound:
		return ErrNotFound
	case types.KindInvalidInput:
		return ErrBadRequest
	case types.KindBroadcastFailed:
		return ErrBadGateway
	case types.KindBroadcastTimeout:
		return ErrGatewayTimeout
	default:
		return ErrInternalServerError
	}
}

// WriteError escribe err como JSON {code, message, detail}.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON escribe v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body (máx 1MB) en v. Escribe el error y retorna
// false si el Content-Type o el JSON son inválidos.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, ErrInvalidJSON.WithDetail("Content-Type debe ser application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		WriteError(w, ErrInvalidJSON.WithCause(err))
		return false
	}
	return true
}
