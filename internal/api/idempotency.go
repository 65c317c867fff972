/**
 * @description
 * Redis-backed idempotency middleware for unsafe HTTP methods. Responses are
 * persisted keyed by the client-supplied Idempotency-Key header; a repeated
 * key replays the stored response instead of re-executing the handler, and a
 * key whose first request is still in flight is rejected with 409.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: The response cache.
 */

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "settlement:idempotency:v1:"
	inProgressMarker     = "__in_progress__"
)

type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
}

// responseRecorder captures the handler's response so it can be persisted.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// replayStored writes the response persisted for an already-seen key. An
// in-progress marker (or an undecodable stored value) answers 409.
func replayStored(w http.ResponseWriter, key, cached string) {
	if cached == inProgressMarker {
		http.Error(w, "duplicate request currently processing", http.StatusConflict)
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		log.Printf("level=warn component=idempotency msg=\"failed to decode stored response\" key=%s err=%v", key, err)
		http.Error(w, "duplicate request", http.StatusConflict)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	w.Write([]byte(stored.Body))
}

// Idempotency enforces idempotent semantics on unsafe methods by persisting
// responses in Redis keyed by the Idempotency-Key header.
func Idempotency(cache *redis.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if key == "" {
				http.Error(w, "missing Idempotency-Key header", http.StatusBadRequest)
				return
			}
			cacheKey := idempotencyPrefix + key

			lookupCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			cached, err := cache.Get(lookupCtx, cacheKey).Result()
			if err == nil {
				replayStored(w, key, cached)
				return
			}
			if err != redis.Nil {
				log.Printf("level=error component=idempotency msg=\"lookup failed\" key=%s err=%v", key, err)
				http.Error(w, "idempotency store failure", http.StatusInternalServerError)
				return
			}

			reserved, err := cache.SetNX(lookupCtx, cacheKey, inProgressMarker, ttl).Result()
			if err != nil {
				log.Printf("level=error component=idempotency msg=\"reservation failed\" key=%s err=%v", key, err)
				http.Error(w, "idempotency reservation failure", http.StatusInternalServerError)
				return
			}
			if !reserved {
				// Another request with the same key reserved it between our
				// lookup and here. The handler must not run a second time:
				// re-read the key and treat it exactly like a cache hit.
				cached, err := cache.Get(lookupCtx, cacheKey).Result()
				if err != nil {
					http.Error(w, "duplicate request currently processing", http.StatusConflict)
					return
				}
				replayStored(w, key, cached)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			persistCtx, persistCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer persistCancel()

			// 5xx outcomes are not cached: the caller is expected to retry
			// and the retry should reach the handler.
			if recorder.status >= 500 {
				cache.Del(persistCtx, cacheKey)
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      recorder.status,
				Body:        recorder.body.String(),
				ContentType: recorder.Header().Get("Content-Type"),
			})
			if err != nil {
				log.Printf("level=error component=idempotency msg=\"failed to encode response for storage\" key=%s err=%v", key, err)
				cache.Del(persistCtx, cacheKey)
				return
			}
			if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
				log.Printf("level=error component=idempotency msg=\"failed to persist response\" key=%s err=%v", key, err)
				cache.Del(persistCtx, cacheKey)
			}
		})
	}
}
