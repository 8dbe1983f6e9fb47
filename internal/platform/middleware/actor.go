package middleware

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"
)

// ClientActor derives an audit-trail attribution from the calling client:
// browser and platform parsed from the User-Agent, plus the originating IP.
// API clients without a browser UA fall back to the raw product token.
func ClientActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := describeClient(r.Header.Get("User-Agent"), clientIP(r))
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func describeClient(rawUA, ip string) string {
	if rawUA == "" {
		return ip
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return fmt.Sprintf("%s (%s)", rawUA, ip)
	}
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform != "" {
		return fmt.Sprintf("%s %s on %s (%s)", name, version, platform, ip)
	}
	return fmt.Sprintf("%s %s (%s)", name, version, ip)
}
