package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/services"
)

// RuleHandler manages the auto-block rule set.
type RuleHandler struct {
	engine *engine.Engine
	audit  *services.AuditService
}

func NewRuleHandler(eng *engine.Engine, audit *services.AuditService) *RuleHandler {
	return &RuleHandler{engine: eng, audit: audit}
}

func (h *RuleHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.engine.Rules()})
}

func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.engine.Rule(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RuleHandler) Create(c *gin.Context) {
	var rule engine.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.AddRule(rule); err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateRule):
			c.JSON(http.StatusConflict, gin.H{"error": "rule id already exists"})
		case errors.Is(err, engine.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		}
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(actorEmail(c), "rule_create", rule.ID, rule.Name)
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *RuleHandler) Update(c *gin.Context) {
	var rule engine.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")

	if err := h.engine.UpdateRule(rule); err != nil {
		switch {
		case errors.Is(err, engine.ErrRuleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		case errors.Is(err, engine.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		}
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(actorEmail(c), "rule_update", rule.ID, rule.Name)
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RuleHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RemoveRule(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(actorEmail(c), "rule_delete", id, "")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}

type EnableRuleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *RuleHandler) Enable(c *gin.Context) {
	var req EnableRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.engine.SetRuleEnabled(id, *req.Enabled); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	if h.audit != nil {
		action := "rule_disable"
		if *req.Enabled {
			action = "rule_enable"
		}
		_ = h.audit.Record(actorEmail(c), action, id, "")
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *req.Enabled})
}

func (h *RuleHandler) Reset(c *gin.Context) {
	h.engine.ResetRules()
	if h.audit != nil {
		_ = h.audit.Record(actorEmail(c), "rule_reset", "", "restored default rule set")
	}
	c.JSON(http.StatusOK, gin.H{"rules": h.engine.Rules()})
}
