package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UserRole controls which API routes a key may call.
type UserRole string

const (
	RoleViewer   UserRole = "viewer"
	RoleOperator UserRole = "operator"
	RoleAdmin    UserRole = "admin"
)

type contextKey string

const (
	ctxKeyUser   contextKey = "user"
	ctxKeyAPIKey contextKey = "api_key"
)

// APIUser identifies the holder of an API key.
type APIUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type apiKeyInfo struct {
	userID    string
	active    bool
	createdAt time.Time
}

// AuthService implements API-key authentication with a role hierarchy.
type AuthService struct {
	mu      sync.RWMutex
	apiKeys map[string]*apiKeyInfo
	users   map[string]*APIUser
	logger  *zap.Logger
}

// NewAuthService creates an auth service seeded with a bootstrap admin key.
// The key is logged once at startup; production deployments rotate it
// immediately via GenerateAPIKey.
func NewAuthService(logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &AuthService{
		apiKeys: make(map[string]*apiKeyInfo),
		users:   make(map[string]*APIUser),
		logger:  logger,
	}

	admin := &APIUser{ID: "admin", Name: "Administrator", Role: RoleAdmin, CreatedAt: time.Now()}
	service.users[admin.ID] = admin

	bootstrapKey := "mevshield_" + randomHex(32)
	service.apiKeys[bootstrapKey] = &apiKeyInfo{userID: admin.ID, active: true, createdAt: time.Now()}
	logger.Info("bootstrap API key generated", zap.String("key", bootstrapKey))

	return service
}

// AddUser registers a user with the given role and returns a fresh API key.
func (a *AuthService) AddUser(id, name string, role UserRole) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[id]; exists {
		return "", fmt.Errorf("user %s already exists", id)
	}
	a.users[id] = &APIUser{ID: id, Name: name, Role: role, CreatedAt: time.Now()}

	key := "mevshield_" + randomHex(32)
	a.apiKeys[key] = &apiKeyInfo{userID: id, active: true, createdAt: time.Now()}
	return key, nil
}

// GenerateAPIKey mints an additional key for an existing user.
func (a *AuthService) GenerateAPIKey(userID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[userID]; !exists {
		return "", fmt.Errorf("user %s not found", userID)
	}
	key := "mevshield_" + randomHex(32)
	a.apiKeys[key] = &apiKeyInfo{userID: userID, active: true, createdAt: time.Now()}
	return key, nil
}

// RevokeAPIKey deactivates a key.
func (a *AuthService) RevokeAPIKey(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	info, exists := a.apiKeys[key]
	if !exists {
		return fmt.Errorf("API key not found")
	}
	info.active = false
	return nil
}

// ValidateAPIKey resolves a key to its user.
func (a *AuthService) ValidateAPIKey(key string) (*APIUser, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	info, exists := a.apiKeys[key]
	if !exists || !info.active {
		return nil, fmt.Errorf("invalid API key")
	}
	user, exists := a.users[info.userID]
	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// AuthMiddleware authenticates "Authorization: Bearer <key>" requests.
func (a *AuthService) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		user, err := a.ValidateAPIKey(parts[1])
		if err != nil {
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		ctx = context.WithValue(ctx, ctxKeyAPIKey, parts[1])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route on the role hierarchy viewer < operator < admin.
func RequireRole(role UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := r.Context().Value(ctxKeyUser).(*APIUser)
			if !ok {
				http.Error(w, "user not found in context", http.StatusInternalServerError)
				return
			}
			if !hasRequiredRole(user.Role, role) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRequiredRole(userRole, requiredRole UserRole) bool {
	hierarchy := map[UserRole]int{
		RoleViewer:   1,
		RoleOperator: 2,
		RoleAdmin:    3,
	}
	userLevel, ok := hierarchy[userRole]
	if !ok {
		return false
	}
	requiredLevel, ok := hierarchy[requiredRole]
	if !ok {
		return false
	}
	return userLevel >= requiredLevel
}

func randomHex(length int) string {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}
