package notify

import (
	"fmt"
	"regexp"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/logger"
	"github.com/dolos-sec/dolos/internal/models"
)

// Notifier delivers block alerts to the providers configured in the
// database. It satisfies the engine's Alerter interface and is always
// invoked off the decision path.
type Notifier struct {
	DB *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{DB: db}
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeURL converts raw Discord webhook URLs into the shoutrrr scheme
// so operators can paste either form.
func normalizeURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		id := matches[1]
		token := matches[2]
		return fmt.Sprintf("discord://%s@%s", token, id)
	}
	return rawURL
}

// BlockIssued sends a block alert to every enabled provider that opted in
// to block notifications. Delivery failures are logged and never surfaced
// to the caller.
func (n *Notifier) BlockIssued(rec blocklist.Record, rule engine.Rule) {
	title := fmt.Sprintf("Address blocked: %s", rec.Address)
	message := n.formatBlock(rec, rule)
	n.send(title, message)
}

// ManualBlock announces a block placed by an operator through the API.
func (n *Notifier) ManualBlock(rec blocklist.Record) {
	title := fmt.Sprintf("Address blocked: %s", rec.Address)
	message := fmt.Sprintf("Blocked by %s. Reason: %s. Expires: %s.",
		rec.Actor, rec.Reason, expiryLabel(rec))
	n.send(title, message)
}

func (n *Notifier) formatBlock(rec blocklist.Record, rule engine.Rule) string {
	return fmt.Sprintf("Rule %q blocked %s (attack: %s, severity: %s). Expires: %s.",
		rule.Name, rec.Address, rec.AttackType, rec.Severity, expiryLabel(rec))
}

func expiryLabel(rec blocklist.Record) string {
	if rec.ExpiresAt == nil {
		return "never"
	}
	return rec.ExpiresAt.UTC().Format("2006-01-02 15:04:05 UTC")
}

func (n *Notifier) send(title, message string) {
	var providers []models.NotificationProvider
	if err := n.DB.Where("enabled = ? AND notify_blocks = ?", true, true).Find(&providers).Error; err != nil {
		logger.Log().WithField("error", err.Error()).Error("failed to fetch notification providers")
		return
	}

	for _, provider := range providers {
		go func(p models.NotificationProvider) {
			url := normalizeURL(p.URL)
			msg := fmt.Sprintf("%s\n\n%s", title, message)
			if err := shoutrrr.Send(url, msg); err != nil {
				logger.Log().WithFields(map[string]interface{}{
					"provider": p.Name,
					"error":    err.Error(),
				}).Error("failed to send block notification")
			}
		}(provider)
	}
}
