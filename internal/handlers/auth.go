package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/internal/store"
	"github.com/joineazy/feedback-apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler provides registration, login, and identity endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
	debug       bool
}

func NewAuthHandler(userService *services.UserService, secret string, tokenTTL time.Duration, debug bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		debug:       debug,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// RequireAuth is the access-control gate. It extracts the bearer token,
// verifies signature and expiry, resolves the subject against the
// credential store, and attaches the resolved identity to the request
// context. Every failure, including a subject that no longer exists,
// yields an authentication error.
func RequireAuth(userService *services.UserService, secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
				return
			}

			subject, err := parseTokenSubject(tokenString, key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token. Please log in again.")
				return
			}
			userID, err := strconv.Atoi(subject)
			if err != nil || userID < 1 {
				writeError(w, http.StatusUnauthorized, "Invalid token. Please log in again.")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "The user belonging to this token no longer exists.")
					return
				}
				writeError(w, http.StatusInternalServerError, "Error resolving user")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user.Identity())))
		})
	}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a new account and issues a signed credential for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide username, password, and role")
		return
	}
	if !types.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, `Role must be either "instructor" or "student"`)
		return
	}

	if _, err := h.userService.GetByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusBadRequest, "User with this username already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeInternal(w, "Error registering user", err, h.debug)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeInternal(w, "Error registering user", err, h.debug)
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Username:     req.Username,
		Role:         req.Role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		writeInternal(w, "Error registering user", err, h.debug)
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeInternal(w, "Error registering user", err, h.debug)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"token":  token,
		"data":   map[string]any{"user": user.Identity()},
	})
}

// Login verifies credentials and issues a signed credential. An unknown
// username and a wrong password produce the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide username and password")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		writeInternal(w, "Error logging in", err, h.debug)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeInternal(w, "Error logging in", err, h.debug)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"token":  token,
		"data":   map[string]any{"user": user.Identity()},
	})
}

// Me returns the identity the gate resolved for this request.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
		return
	}
	writeData(w, http.StatusOK, "user", identity)
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
