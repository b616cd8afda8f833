package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/biglong-lab/woyu-money-sub004/utils"
)

// RateLimitMiddleware ограничивает частоту запросов с одного IP
func RateLimitMiddleware(limiter *utils.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIP(r)

			if !limiter.Allow(clientIP) {
				w.Header().Set("X-RateLimit-Reset", limiter.ResetTime(clientIP).UTC().Format(http.TimeFormat))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			// Добавляем заголовки с информацией о лимитах
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(clientIP)))

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
