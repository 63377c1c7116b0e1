package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DecodeBody decodes the JSON request body into v, rejecting unknown
// fields and trailing data, the same discipline the upstream distributor
// API and the teacher repo's own decoder use.
func DecodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid request body: must contain a single JSON value")
	}
	return nil
}

// PathParam extracts a named path parameter using Go 1.22+ ServeMux
// pattern matching (e.g. /v1/editions/{tag}).
func PathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
