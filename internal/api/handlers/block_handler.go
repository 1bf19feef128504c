package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/metrics"
	"github.com/dolos-sec/dolos/internal/notify"
	"github.com/dolos-sec/dolos/internal/services"
)

// BlockHandler exposes the block registry to operators. Unlike the decision
// path, management operations report their failures.
type BlockHandler struct {
	registry *blocklist.Registry
	audit    *services.AuditService
	notifier *notify.Notifier
}

func NewBlockHandler(registry *blocklist.Registry, audit *services.AuditService, notifier *notify.Notifier) *BlockHandler {
	return &BlockHandler{registry: registry, audit: audit, notifier: notifier}
}

func (h *BlockHandler) List(c *gin.Context) {
	records, err := h.registry.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blocks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": records, "degraded": h.registry.Degraded()})
}

type CreateBlockRequest struct {
	Address  string `json:"address" binding:"required"`
	Duration string `json:"duration" binding:"required"`
	Reason   string `json:"reason"`
}

func (h *BlockHandler) Create(c *gin.Context) {
	var req CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if net.ParseIP(req.Address) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	actor := actorEmail(c)
	rec, err := h.registry.Block(req.Address, blocklist.Duration(req.Duration), req.Reason, actor, "", "")
	if err != nil {
		if errors.Is(err, blocklist.ErrInvalidDuration) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create block"})
		return
	}

	metrics.IncManualBlock()
	if h.audit != nil {
		_ = h.audit.Record(actor, "block", req.Address, req.Reason)
	}
	if h.notifier != nil {
		go h.notifier.ManualBlock(rec)
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *BlockHandler) Delete(c *gin.Context) {
	address := c.Param("address")

	existed, err := h.registry.Unblock(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove block"})
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "address is not blocked"})
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(actorEmail(c), "unblock", address, "")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Block removed"})
}

// actorEmail pulls the authenticated user's email set by the auth
// middleware, falling back to a generic label for unauthenticated tests.
func actorEmail(c *gin.Context) string {
	if v, ok := c.Get("email"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "operator"
}
