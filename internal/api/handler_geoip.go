package api

import (
	"fmt"
	"net/http"

	"github.com/ashgrove/geolocated/internal/geolookup"
	"github.com/ashgrove/geolocated/internal/updater"
)

// HandleStatus returns a handler for GET /v1/status.
func HandleStatus(facade *geolookup.Facade, editions []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, facade.Status(editions))
	}
}

// HandleLookup returns a handler for GET /v1/lookup?ip=&locale=&edition=.
func HandleLookup(facade *geolookup.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ipParam := r.URL.Query().Get("ip")
		if ipParam == "" {
			invalidArgument(w, "ip query parameter is required")
			return
		}
		ip, err := geolookup.ParseIP(ipParam)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		locale := r.URL.Query().Get("locale")
		edition := r.URL.Query().Get("edition")

		result, err := facade.Lookup(ip, locale, edition)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

// HandleLookupBatch returns a handler for POST /v1/lookup: {"ips": [...]}
// with optional "locale"/"edition". A per-item failure (invalid address) is
// reported per-item, never as a whole-batch error.
func HandleLookupBatch(facade *geolookup.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IPs     []string `json:"ips"`
			Locale  string   `json:"locale"`
			Edition string   `json:"edition"`
		}
		if err := DecodeBody(r, &body); err != nil {
			invalidArgument(w, err.Error())
			return
		}

		type item struct {
			IP     string                  `json:"ip"`
			Result *geolookup.LookupResult `json:"result,omitempty"`
			Error  string                  `json:"error,omitempty"`
		}
		results := make([]item, 0, len(body.IPs))
		for _, raw := range body.IPs {
			ip, err := geolookup.ParseIP(raw)
			if err != nil {
				results = append(results, item{IP: raw, Error: err.Error()})
				continue
			}
			res, err := facade.Lookup(ip, body.Locale, body.Edition)
			if err != nil {
				results = append(results, item{IP: raw, Error: err.Error()})
				continue
			}
			results = append(results, item{IP: raw, Result: res})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

// HandleWhoami returns a handler for GET /v1/whoami: the caller's own IP
// as resolved by the (delegated) client-IP extractor, optionally resolved
// through the lookup facade in the same step.
func HandleWhoami(facade *geolookup.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ipStr := clientIP(r)
		ip, err := geolookup.ParseIP(ipStr)
		if err != nil {
			WriteJSON(w, http.StatusOK, map[string]string{"ip": ipStr})
			return
		}

		locale := r.URL.Query().Get("locale")
		edition := r.URL.Query().Get("edition")
		result, err := facade.Lookup(ip, locale, edition)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

// HandleTimezones returns a handler for GET /v1/timezones: the full
// zone-id -> POSIX TZ string map.
func HandleTimezones(tz timezoneTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"timezones": tz.All()})
	}
}

// timezoneTable is the minimal surface HandleTimezones needs, kept as a
// narrow interface so this file does not import internal/tzdb directly.
type timezoneTable interface {
	All() map[string]string
}

// HandleUpdateNow returns a handler for POST /v1/editions/{tag}/actions/update-now.
func HandleUpdateNow(trigger *updater.Loop) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := PathParam(r, "tag")
		if err := trigger.UpdateNow(r.Context(), tag); err != nil {
			WriteError(w, http.StatusInternalServerError, "UPDATE_FAILED", fmt.Sprintf("%v", err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
