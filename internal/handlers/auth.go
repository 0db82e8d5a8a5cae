package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth *middleware.JWTAuthMiddleware
	logger  *zap.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		jwtAuth: jwtAuth,
		logger:  logger.Named("auth_handler"),
	}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req api.LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if !h.jwtAuth.ValidateCredentials(req.Username, req.Password) {
		h.logger.Warn("failed login attempt",
			zap.String("username", req.Username),
			zap.String("remote_addr", r.RemoteAddr))
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.Username)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("username", req.Username), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.Info("user logged in",
		zap.String("username", req.Username),
		zap.String("remote_addr", r.RemoteAddr))

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		Username:  req.Username,
		ExpiresAt: expiresAt,
	})
}

// handleVerify handles GET /auth/verify
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	if user == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"username": user,
	})
}
