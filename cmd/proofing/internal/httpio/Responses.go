package httpio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

func OK(w http.ResponseWriter, value any) {
	WriteJSON(w, http.StatusOK, value)
}

func Created(w http.ResponseWriter, value any) {
	WriteJSON(w, http.StatusCreated, value)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

/*
StatusFor maps a workflow error kind to its HTTP status.
*/
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidTransition:
		return http.StatusConflict
	case models.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

/*
WriteError answers with the error's kind and its client-safe reason.
Anything unexpected is logged and answered with a generic retry message.
*/
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	message := models.ReasonOf(err)

	if kind == models.KindTransient {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = models.ReasonTryAgain
	}

	WriteJSON(w, StatusFor(err), viewmodels.ErrorResponse{
		Error:   string(kind),
		Message: message,
	})
}

/*
ReadJSON decodes the request body into dest and validates it. Failures come
back as Validation errors.
*/
func ReadJSON(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Validation("request body is required")
		}

		return models.Validation("request body is not valid JSON")
	}

	return Validate(dest)
}

func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors

	if !errors.As(err, &fieldErrors) {
		return models.Validation(err.Error())
	}

	messages := make([]string, 0, len(fieldErrors))

	for _, fe := range fieldErrors {
		messages = append(messages, fmt.Sprintf("%s failed '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}

	return models.Validation(strings.Join(messages, ", "))
}
