package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/service"
)

type updateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func usersToResponse(users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	return resp
}

func (h *Handler) updateMe(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), mustUser(c).ID(), req.Name, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listUsers(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usersToResponse(users))
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := auth.RequireOwnerOrAdmin(mustUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listUserRecords(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	records, err := h.records.ListForUser(c.Request.Context(), mustUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRecordDocuments(records))
}

// createUser is the trusted provisioning path. Unlike registration it honours
// the requested role.
func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be one of user, admin"})
			return
		}
		role = parsed
	}

	user, err := h.users.CreateUser(c.Request.Context(), service.NewAccount{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.WithField("user_id", user.ID()).WithField("by", mustUser(c).ID()).Info("user provisioned")
	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) setActive(active bool) gin.HandlerFunc {
	status := "deactivated"
	if active {
		status = "activated"
	}
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if _, err := h.users.SetActive(c.Request.Context(), mustUser(c), id, active); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
	}
}

// deleteUser removes the account, its records (by cascade) and any archives
// in object storage. Archive cleanup failures are reported as warnings.
func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), mustUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	var warnings []string
	purgeCtx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := h.exports.Purge(purgeCtx, id); err != nil {
		h.logger.WithError(err).WithField("user_id", id).Warn("purge archives")
		warnings = append(warnings, fmt.Sprintf("delete archives: %v", err))
	}

	resp := gin.H{"deleted": id}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

type DashboardResponse struct {
	service.Dashboard
	RecentRecords []service.RecordDocument `json:"recent_records"`
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{
		Dashboard:     d,
		RecentRecords: service.NewRecordDocuments(d.RecentRecords),
	})
}

func (h *Handler) summary(c *gin.Context) {
	s, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
