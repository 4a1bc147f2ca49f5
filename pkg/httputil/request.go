package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// MaxBodyBytes caps request bodies read through ParseJSON.
const MaxBodyBytes = 1 << 20

// ParseJSON decodes JSON from the request body into the destination,
// rejecting unknown fields and oversized bodies.
func ParseJSON(r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes the error envelope on
// failure.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// PathVar extracts a string path parameter.
func PathVar(r *http.Request, key string) (string, error) {
	v := mux.Vars(r)[key]
	if v == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return v, nil
}

// PathVarOrError extracts a string path parameter and writes the error
// envelope on failure.
func PathVarOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v, err := PathVar(r, key)
	if err != nil {
		WriteBadRequest(w, "INVALID_REQUEST", err.Error())
		return "", false
	}
	return v, true
}

// QueryBool parses an optional boolean query parameter. A missing
// parameter yields a nil pointer.
func QueryBool(r *http.Request, key string) (*bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean for query param %s: %s", key, s)
	}
	return &v, nil
}

// QueryString returns an optional string query parameter.
func QueryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}
