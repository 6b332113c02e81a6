package auth

import (
	"errors"
	"net/http"

	"authcore/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by the auth middleware.
const (
	CtxSubjectID = "subject_id"
	CtxSessionID = "session_id"
)

// Handler is the reference HTTP binding for the engine. It only
// decodes requests, extracts client metadata, and maps sentinel errors
// to statuses; all semantics live in the Service.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/revoke-all", h.RevokeAll)
		authGroup.GET("/sessions", h.ListSessions)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshSecret, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *Handler) Logout(c *gin.Context) {
	sessionID, ok := sessionFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}
	if err := h.service.Logout(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

func (h *Handler) RevokeAll(c *gin.Context) {
	subjectID := c.GetString(CtxSubjectID)
	if subjectID == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject")
		return
	}
	count, err := h.service.RevokeAllSessions(c.Request.Context(), subjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked_sessions": count})
}

func (h *Handler) ListSessions(c *gin.Context) {
	subjectID := c.GetString(CtxSubjectID)
	if subjectID == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject")
		return
	}
	sessions, err := h.service.ListSessions(c.Request.Context(), subjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrReplayDetected):
		response.Error(c, http.StatusUnauthorized, "REPLAY_DETECTED", "refresh token reuse detected; re-authentication required")
	case errors.Is(err, ErrSessionInactive):
		response.Error(c, http.StatusUnauthorized, "SESSION_INACTIVE", "session is no longer active")
	case errors.Is(err, ErrExpired):
		response.Error(c, http.StatusUnauthorized, "EXPIRED", "credential expired")
	case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential")
	case errors.Is(err, ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	case errors.Is(err, ErrLockTimeout):
		response.Error(c, http.StatusServiceUnavailable, "LOCK_TIMEOUT", "rotation contended, retry")
	case errors.Is(err, ErrUnknownProvider):
		response.Error(c, http.StatusBadRequest, "UNKNOWN_PROVIDER", "unknown credential provider")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func sessionFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(CtxSessionID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
