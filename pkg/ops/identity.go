package ops

import (
	"hash/fnv"
	"net"
	"net/http"
)

// uaHashLength caps how much of the user agent feeds the cohort hash.
const uaHashLength = 32

// Identity resolves the rate-limit identity for a request: the session id
// header when the client sends one, else the client IP (RealIP middleware
// has already rewritten RemoteAddr), else a fixed fallback.
func Identity(r *http.Request) string {
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if ip := clientIP(r); ip != "" {
		return ip
	}
	return "unknown"
}

// cohortHash maps a request onto [0,100). Keyed by session id when
// present, else client IP plus a truncated user agent. Stable for a given
// identity so a cohort member stays in the cohort across requests.
func cohortHash(r *http.Request) int {
	key := r.Header.Get("X-Session-Id")
	if key == "" {
		ua := r.UserAgent()
		if len(ua) > uaHashLength {
			ua = ua[:uaHashLength]
		}
		key = clientIP(r) + ua
	}

	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % 100)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP middleware writes a bare IP without a port.
		return r.RemoteAddr
	}
	return host
}
