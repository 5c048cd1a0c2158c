// Package jsonresp writes the JSON envelopes every API endpoint returns:
//
//	{ "success": true, ... }                                   on success
//	{ "success": false, "message": "...", "errors": [...] }    on 4xx
//	{ "success": false, "message": "...", "error": "..." }     on 5xx
//
// Store and driver errors are logged in full but only a generic string is
// sent to the client.
package jsonresp

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/parley/internal/app/system/inputval"
	"go.uber.org/zap"
)

// GenericError is the only error text a client ever sees for a 500.
const GenericError = "internal server error"

// Envelope is the failure body shape.
type Envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Errors  []inputval.FieldError `json:"errors,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Fail writes {success:false, message} with status.
func Fail(w http.ResponseWriter, status int, message string) {
	Write(w, status, Envelope{Success: false, Message: message})
}

// Invalid writes a 400 carrying the field errors of res.
func Invalid(w http.ResponseWriter, res *inputval.Result) {
	Write(w, http.StatusBadRequest, Envelope{
		Success: false,
		Message: res.First(),
		Errors:  res.Errors,
	})
}

// ServerError logs err with fields and writes a 500 with a generic error string.
func ServerError(w http.ResponseWriter, log *zap.Logger, message string, err error, fields ...zap.Field) {
	if log != nil {
		log.Error(message, append(fields, zap.Error(err))...)
	}
	Write(w, http.StatusInternalServerError, Envelope{
		Success: false,
		Message: message,
		Error:   GenericError,
	})
}
