package response

import (
	"net/http"

	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"

	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	output, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(output)
}

func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), dto.ErrorResponse{Error: err.Error()})
}

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadParam):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrHandle):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoResource), errors.Is(err, domain.ErrNoMemory):
		return http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads a JSON request body into v. Failures are reported as
// domain.ErrBadParam.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(domain.ErrBadParam, "decode request: %v", err)
	}
	return nil
}
