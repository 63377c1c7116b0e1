package api

import (
	"errors"
	"net/http"

	"github.com/ashgrove/geolocated/internal/geolookup"
)

func invalidArgument(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", message)
}

// writeServiceError maps geolookup.ServiceError codes to HTTP status,
// per the request-time error taxonomy: InvalidArgument -> 400,
// UnknownEdition -> 404, MissingDatabase -> 503, everything else -> 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	var svcErr *geolookup.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case geolookup.CodeInvalidArgument:
			WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", svcErr.Message)
		case geolookup.CodeUnknownEdition:
			WriteError(w, http.StatusNotFound, "UNKNOWN_EDITION", svcErr.Message)
		case geolookup.CodeMissingDatabase:
			WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", svcErr.Message)
		default:
			WriteError(w, http.StatusInternalServerError, "INTERNAL", svcErr.Message)
		}
		return
	}
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
