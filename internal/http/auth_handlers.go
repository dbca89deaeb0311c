package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/service"
)

type UserResponse struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	CreatedAt string      `json:"created_at"`
}

func userToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID(),
		Email:     u.Email(),
		Name:      u.Name(),
		Role:      u.Role(),
		IsActive:  u.IsActive(),
		CreatedAt: u.CreatedAt().UTC().Format(time.RFC3339),
	}
}

type TokenUser struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        *TokenUser `json:"user,omitempty"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	// Role is accepted for compatibility and ignored.
	Role string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.NewAccount{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		outcome := "error"
		var verr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			outcome = "duplicate"
		case errors.As(err, &verr):
			outcome = "invalid"
		}
		h.metrics.AuthEvent("register", outcome)
		h.respondError(c, err)
		return
	}

	h.metrics.AuthEvent("register", "ok")
	c.JSON(http.StatusCreated, userToResponse(user))
}

// loginForm accepts the OAuth2 password grant form, where the email travels as
// username.
func (h *Handler) loginForm(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.login(c, req)
}

func (h *Handler) loginJSON(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.login(c, req)
}

func (h *Handler) login(c *gin.Context, req loginRequest) {
	user, err := h.resolver.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.AuthEvent("login", "invalid_credentials")
		} else {
			h.metrics.AuthEvent("login", "error")
		}
		h.respondAuthError(c, err)
		return
	}

	token, err := h.resolver.IssueToken(user.ID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.AuthEvent("login", "ok")

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.resolver.TokenTTL().Seconds()),
		User: &TokenUser{
			ID:    user.ID(),
			Name:  user.Name(),
			Email: user.Email(),
			Role:  user.Role(),
		},
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(mustUser(c)))
}

func (h *Handler) refreshToken(c *gin.Context) {
	token, err := h.resolver.IssueToken(mustUser(c).ID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.resolver.TokenTTL().Seconds()),
	})
}
