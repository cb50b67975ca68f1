package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID        int64     `json:"id"`
	Sub       string    `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the user information carried in identity provider tokens.
// Empty fields never overwrite stored values.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (u *User) MarshalBinary() ([]byte, error) {
	return json.Marshal(u)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (u *User) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, u)
}

type Store interface {
	// GetOrCreateBySubject returns the user for an identity provider
	// subject, creating it on first sight and refreshing its profile.
	GetOrCreateBySubject(ctx context.Context, sub string, p Profile) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	subjectKey   contextKey = "subject"
	requestIDKey contextKey = "request_id"
)

func NewMiddleware(verifier *Verifier, store Store, cache UserCache, logger zerolog.Logger) Middleware {
	logger = logger.With().Str("component", "auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Generate RequestID
			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Debug().Err(err).Str("request_id", requestID).Msg("token rejected")
				writeUnauthorized(w, "invalid token")
				return
			}

			user, err := cache.Get(ctx, claims.Subject)
			if err != nil && !errors.Is(err, ErrCacheMiss) {
				logger.Warn().Err(err).Msg("user cache unavailable")
			}
			if user == nil {
				// Cache miss or error: lookup in store
				user, err = store.GetOrCreateBySubject(ctx, claims.Subject, claims.Profile())
				if err != nil {
					logger.Error().Err(err).Str("sub", claims.Subject).Msg("failed to load user")
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				if err := cache.Set(ctx, user); err != nil {
					logger.Warn().Err(err).Msg("failed to cache user")
				}
			}

			ctx = context.WithValue(ctx, userIDKey, user.ID)
			ctx = context.WithValue(ctx, subjectKey, user.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized: " + msg})
}

// Helpers to extract from context
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey).(string); ok {
		return sub
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
