package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/geo"
	"github.com/dolos-sec/dolos/internal/metrics"
	"github.com/dolos-sec/dolos/internal/stats"
)

// EventHandler is the ingestion endpoint for the trap front-end. Every
// request a decoy endpoint receives is forwarded here for classification
// and a block decision.
type EventHandler struct {
	classifier *detect.Classifier
	gate       *geo.Gate
	engine     *engine.Engine
	stats      *stats.Aggregator
}

func NewEventHandler(classifier *detect.Classifier, gate *geo.Gate, eng *engine.Engine, agg *stats.Aggregator) *EventHandler {
	return &EventHandler{classifier: classifier, gate: gate, engine: eng, stats: agg}
}

type IngestRequest struct {
	Address string            `json:"address" binding:"required"`
	Path    string            `json:"path"`
	Query   string            `json:"query"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

type IngestResponse struct {
	AttackType     detect.AttackType `json:"attack_type"`
	Severity       detect.Severity   `json:"severity"`
	Details        string            `json:"details"`
	CountryCode    string            `json:"country_code,omitempty"`
	CountryAllowed bool              `json:"country_allowed"`
	Blocked        bool              `json:"blocked"`
	TriggeredRules []string          `json:"triggered_rules"`
	Reason         string            `json:"reason,omitempty"`
}

// Ingest classifies the forwarded request and runs it through the rule
// engine. This is the decision path: it never returns an error for a
// well-formed event.
func (h *EventHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if net.ParseIP(req.Address) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	detectReq := detect.Request{
		Path:    req.Path,
		Query:   req.Query,
		Body:    req.Body,
		Headers: req.Headers,
	}
	result := h.classifier.Classify(detectReq)
	metrics.IncClassified()
	if result.Type != detect.AttackUnknown {
		metrics.IncDetected(result.Severity.String())
	}

	allowed, country := true, ""
	if h.gate != nil {
		allowed, country = h.gate.Check(req.Address)
	}

	ev := detect.Event{
		Address:     req.Address,
		Timestamp:   time.Now(),
		Type:        result.Type,
		Severity:    result.Severity,
		Path:        req.Path,
		UserAgent:   detectReq.UserAgent(),
		CountryCode: country,
	}

	outcome := h.engine.ProcessAttack(ev)
	h.stats.RecordAttack(ev, outcome.Blocked, outcome.Reason)

	c.JSON(http.StatusOK, IngestResponse{
		AttackType:     result.Type,
		Severity:       result.Severity,
		Details:        result.Details,
		CountryCode:    country,
		CountryAllowed: allowed,
		Blocked:        outcome.Blocked,
		TriggeredRules: outcome.TriggeredRules,
		Reason:         outcome.Reason,
	})
}
