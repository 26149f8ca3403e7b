package notifications

import "github.com/trustlens/evidence-verifier/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(report *models.Report) error
}
