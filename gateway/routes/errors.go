package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	coreerrors "satvault/core/errors"
)

const requestBodyLimit = 1 << 20 // 1 MiB

const (
	codeNotFound        = "NotFound"
	codeUnauthenticated = "Unauthenticated"
	codeBadRequest      = "InvalidParameters"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps the ledger error taxonomy onto HTTP status codes.
func statusFor(code string) int {
	switch code {
	case coreerrors.CodeNotAuthorized, coreerrors.CodeUnauthorizedVaultAction:
		return http.StatusForbidden
	case coreerrors.CodeInvalidParameters, coreerrors.CodeInvalidCollateral:
		return http.StatusBadRequest
	case coreerrors.CodeInsufficientBalance, coreerrors.CodeUndercollateralized, coreerrors.CodeMintLimitExceeded:
		return http.StatusConflict
	case coreerrors.CodeLiquidationFailed:
		return http.StatusUnprocessableEntity
	case coreerrors.CodeOraclePriceUnavailable:
		return http.StatusServiceUnavailable
	case coreerrors.CodeModulePaused:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeLedgerError renders err using its taxonomy code. Internal failures do
// not leak storage details.
func (s *server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := coreerrors.Code(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger request failed",
			"path", r.URL.Path,
			"error", err.Error())
		message = "internal error"
	}
	writeJSONError(w, status, code, message)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, codeBadRequest, err.Error())
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusNotFound, codeNotFound, message)
}

func decodeRequest(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestBodyLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
