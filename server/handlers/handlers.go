// Package handlers implements the reference server's HTTP surface.
package handlers

import (
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"wastetrack/api"
	"wastetrack/server/database"
	"wastetrack/server/locations"
)

// Handlers serves the auth, admin, and location endpoints.
type Handlers struct {
	service  *database.AuthService
	registry *locations.Registry
}

func NewHandlers(service *database.AuthService, registry *locations.Registry) *Handlers {
	return &Handlers{service: service, registry: registry}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Register handles POST /auth/register. Self-registered residents are
// approved immediately; self-registered collectors wait for an admin.
func (h *Handlers) Register(c *gin.Context) {
	var req api.RegisterArgs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = api.RoleResident
	}
	approved := role != api.RoleCollector

	acct, err := h.service.CreateUser(c.Request.Context(), req, []string{role}, approved)
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "user already exists"})
			return
		}
		log.Errorf("register failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	h.respondWithSession(c, http.StatusCreated, acct)
}

// Login handles POST /auth/login. Accounts with a second factor
// enabled get a challenge response instead of a session.
func (h *Handlers) Login(c *gin.Context) {
	var req api.LoginArgs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	acct, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
			return
		}
		log.Errorf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}

	if acct.TwoFactorEnabled {
		tempToken, err := h.service.IssueTempToken(acct.ID)
		if err != nil {
			log.Errorf("failed to issue temp token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
			return
		}
		c.JSON(http.StatusOK, api.AuthResponse{TwoFactorRequired: true, TempToken: tempToken})
		return
	}

	h.respondWithSession(c, http.StatusOK, acct)
}

// Me handles GET /auth/me.
func (h *Handlers) Me(c *gin.Context) {
	acct, err := h.service.GetUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, acct.User())
}

// ListCollectors handles GET /locations/admin/collectors.
func (h *Handlers) ListCollectors(c *gin.Context) {
	accts, err := h.service.ListCollectors(c.Request.Context())
	if err != nil {
		log.Errorf("failed to list collectors: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list collectors"})
		return
	}
	out := make([]*api.User, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.User())
	}
	c.JSON(http.StatusOK, out)
}

// CreateCollector handles POST /admin/collectors. Admin-created
// collectors are approved from the start.
func (h *Handlers) CreateCollector(c *gin.Context) {
	var req api.CreateCollectorArgs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	args := api.RegisterArgs{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Phone:         req.Phone,
		VehicleNumber: req.VehicleNumber,
		VehicleType:   req.VehicleType,
	}
	acct, err := h.service.CreateUser(c.Request.Context(), args, []string{api.RoleCollector}, true)
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "user already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, acct.User())
}

// DeleteCollector handles DELETE /admin/collectors/:userId. The live
// location entry, if any, goes with the account.
func (h *Handlers) DeleteCollector(c *gin.Context) {
	userID := c.Param("userId")
	if err := h.service.DeleteCollector(c.Request.Context(), userID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "collector not found"})
			return
		}
		log.Errorf("failed to delete collector %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete collector"})
		return
	}
	h.registry.Remove(userID)
	c.JSON(http.StatusOK, gin.H{"message": "collector deleted"})
}

// UpdateLocation handles POST /locations/update from collectors. The
// collector identity comes from the session, never the body.
func (h *Handlers) UpdateLocation(c *gin.Context) {
	var req api.LocationUpdateArgs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	acct := c.MustGet("account").(*database.Account)
	available := acct.IsApproved
	h.registry.Update(acct.ID, req, api.CollectorInfo{
		VehicleNumber: acct.VehicleNumber,
		IsAvailable:   &available,
	})
	c.JSON(http.StatusOK, gin.H{"message": "location updated"})
}

// GetLocations handles GET /locations/collectors.
func (h *Handlers) GetLocations(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Snapshot())
}

// StreamLocations handles GET /locations/stream: a server-sent-events
// feed that pushes the full keyed mapping on every change, starting
// with the current state.
func (h *Handlers) StreamLocations(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.registry.Subscribe()
	defer cancel()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-events:
			if _, err := c.Writer.Write([]byte("data: ")); err != nil {
				return
			}
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (h *Handlers) respondWithSession(c *gin.Context, status int, acct *database.Account) {
	token, err := h.service.IssueToken(acct.ID)
	if err != nil {
		log.Errorf("failed to issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to issue token"})
		return
	}
	c.JSON(status, api.AuthResponse{Token: token, User: acct.User()})
}
