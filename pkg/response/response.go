package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"takaro-dashboard-api/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta describes a list payload.
type Meta struct {
	Total int `json:"total"`
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// List sends a 200 response whose meta carries the item count of data,
// which must be a slice or map.
func List(w http.ResponseWriter, data any) {
	total := 0
	if v := reflect.ValueOf(data); v.Kind() == reflect.Slice || v.Kind() == reflect.Map {
		total = v.Len()
	}
	write(w, http.StatusOK, Response{Success: true, Data: data, Meta: &Meta{Total: total}})
}

// Error sends an error response. Errors that are not *apierror.Error are
// reported as internal errors.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.InternalError("")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}
