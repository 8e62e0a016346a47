// internal/workers/catalog/resolve-catalog-view/models.go
package resolvecatalogview

import (
	"catalog-bff/internal/models"
	"catalog-bff/internal/tier"
)

// Input are the job variables. SessionCookies maps cookie name to value and
// is forwarded to the auth check together with Authorization.
type Input struct {
	SessionID      string            `json:"sessionId"`
	SessionCookies map[string]string `json:"sessionCookies"`
	Authorization  string            `json:"authorization"`
}

// Output is written back as job variables.
type Output struct {
	SessionID   string                    `json:"sessionId"`
	Collections []models.Collection       `json:"collections"`
	Plans       []models.SubscriptionPlan `json:"plans"`
	User        *models.User              `json:"user"`
	ViewerTier  tier.Tier                 `json:"viewerTier"`
	Degraded    []string                  `json:"degraded"`
	CycleID     string                    `json:"cycleId"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"sessionId": {"type": "string"},
		"sessionCookies": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"authorization": {"type": "string"}
	}
}`
