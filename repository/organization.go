package repository

import (
	"database/sql"
	"encoding/json"
	"log"

	"eventflow/objects"
)

// GetOrganization loads a tenant with its tier limits and usage counters.
// Returns nil without error when the organization does not exist.
func (repo *Repository) GetOrganization(id string) (*objects.Organization, error) {
	log.Printf("[REPOSITORY] Finding organization %s", id)
	org := &objects.Organization{}

	var tierLimits, usageMetrics []byte
	err := repo.db.QueryRow(
		`SELECT id, name, subscription_tier, tier_limits, usage_metrics
		FROM organizations
		WHERE id = $1
		LIMIT 1`,
		id,
	).Scan(&org.ID, &org.Name, &org.Tier, &tierLimits, &usageMetrics)

	if err == sql.ErrNoRows {
		log.Printf("[REPOSITORY] Organization %s not found", id)
		return nil, nil
	}
	if err != nil {
		log.Printf("[REPOSITORY] Error finding organization %s: %v", id, err)
		return nil, err
	}

	if len(tierLimits) > 0 {
		if err := json.Unmarshal(tierLimits, &org.TierLimits); err != nil {
			log.Printf("[REPOSITORY] Error unmarshalling tier limits for %s: %v", id, err)
			return nil, err
		}
	}
	if len(usageMetrics) > 0 {
		if err := json.Unmarshal(usageMetrics, &org.CurrentUsage); err != nil {
			log.Printf("[REPOSITORY] Error unmarshalling usage metrics for %s: %v", id, err)
			return nil, err
		}
	}

	return org, nil
}

// GetMessageTemplate resolves the template body for a message type, preferring
// the organization's own template over the system default. Returns an empty
// string when neither exists so callers fall back to the built-in text.
func (repo *Repository) GetMessageTemplate(organizationID, messageType string) (string, error) {
	var content string
	err := repo.db.QueryRow(
		`SELECT content
		FROM message_templates
		WHERE message_type = $2
		  AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY organization_id NULLS LAST
		LIMIT 1`,
		organizationID, messageType,
	).Scan(&content)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		log.Printf("[REPOSITORY] Error finding template %s for organization %s: %v",
			messageType, organizationID, err)
		return "", err
	}
	return content, nil
}
