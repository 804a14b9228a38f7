package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyLockTTL = 10 * time.Second
	idempotencyTTL     = 24 * time.Hour
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Idempotency rejects a repeated state-changing request carrying the same
// Idempotency-Key with 409. Keys are scoped per user. A request that did not
// succeed releases its key so the client may retry.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := "anonymous"
			if userID, ok := UserIDFromContext(r.Context()); ok {
				scope = userID.String()
			}
			idemKey := fmt.Sprintf("idempotency:%s:%s", scope, key)
			ctx := r.Context()

			acquired, err := redisClient.SetNX(ctx, idemKey, "PROCESSING", idempotencyLockTTL).Result()
			if err != nil {
				// redis unavailable: serve without the guarantee
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"error": "request already processed"}`))
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				redisClient.Set(ctx, idemKey, "COMPLETED", idempotencyTTL)
				return
			}
			redisClient.Del(ctx, idemKey)
		})
	}
}
