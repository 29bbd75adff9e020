// Package handlers implements the JSON endpoints of the HTTP API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError renders err with the status of its code. Server-side
// failures are masked with the code's default message.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	msg := errors.DefaultMessageForCode(code)
	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		msg = ae.Message
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: msg})
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF && allowEmpty {
			return nil
		}
		return errors.InvalidParam("malformed JSON body").WithCause(err)
	}
	return nil
}

// authorizeUser rejects access to another user's data when the request is
// authenticated. Without auth every user id is accepted.
func authorizeUser(r *http.Request, userID string) error {
	if caller := middleware.ContextGetUserID(r.Context()); caller != "" && caller != userID {
		return errors.Forbidden("cannot access another user's data")
	}
	return nil
}
