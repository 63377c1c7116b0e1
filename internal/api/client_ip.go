package api

import (
	"net"
	"net/http"
)

// clientIP extracts the caller's address from the request, same shape as
// the reverse-proxy's request lifecycle logging: split host:port if
// present, fall back to the raw RemoteAddr otherwise. A real deployment
// typically sits behind a trusted extractor that also honors
// X-Forwarded-For; that extractor is an external collaborator (spec
// Non-goals) and is expected to rewrite RemoteAddr before this handler
// runs, not duplicated here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
