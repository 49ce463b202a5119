package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/response"
)

const maxIdempotentBody = 1 << 20

// IdempotencyStore persists replayable responses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// IdempotencyMiddleware replays the first successful response for a POST
// carrying the same Idempotency-Key on the same path within the same scope.
// scope names the caller (owner id on authenticated routes) and may be nil.
// Reusing a key with a different request body is rejected with 422.
func IdempotencyMiddleware(store IdempotencyStore, ttl time.Duration, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				response.BadRequest(w, "Could not read request body")
				return
			}
			if len(body) > maxIdempotentBody {
				response.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", response.CodeInvalidInput)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			bodySum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(bodySum[:])

			var owner string
			if scope != nil {
				owner = scope(r)
			}

			// Hash the key for privacy
			hasher := sha256.New()
			hasher.Write([]byte(owner))
			hasher.Write([]byte{0})
			hasher.Write([]byte(r.URL.Path))
			hasher.Write([]byte{0})
			hasher.Write([]byte(key))
			hashedKey := fmt.Sprintf("idempotency:%x", hasher.Sum(nil))

			if existing, err := store.Get(r.Context(), hashedKey); err == nil && existing != "" {
				var cached storedResponse
				if err := json.Unmarshal([]byte(existing), &cached); err == nil {
					if cached.RequestHash != requestHash {
						response.WriteError(w, http.StatusUnprocessableEntity,
							"Idempotency-Key was already used with a different request", response.CodeIdempotencyMismatch)
						return
					}
					w.Header().Set("Content-Type", cached.ContentType)
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(cached.Status)
					w.Write([]byte(cached.Body))
					return
				}
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= 200 && recorder.statusCode < 300 {
				payload, _ := json.Marshal(storedResponse{
					Status:      recorder.statusCode,
					ContentType: w.Header().Get("Content-Type"),
					Body:        string(recorder.body),
					RequestHash: requestHash,
				})
				if err := store.Set(r.Context(), hashedKey, string(payload), ttl); err != nil {
					logger.WarnContext(r.Context(), "failed to store idempotent response", "error", err)
				}
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.body = append(r.body, body...)
	return r.ResponseWriter.Write(body)
}
