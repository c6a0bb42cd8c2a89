package quota

import (
	"fmt"
	"log"

	"eventflow/objects"
)

// UsageStore loads tenant tier and usage data.
type UsageStore interface {
	GetOrganization(id string) (*objects.Organization, error)
}

// Result is the outcome of one quota check.
type Result struct {
	Allowed   bool
	Remaining int
	Tier      string
}

// Gate decides whether a tenant may send another message this period.
type Gate struct {
	store UsageStore
}

func NewGate(store UsageStore) *Gate {
	return &Gate{store: store}
}

// Check evaluates the tenant's monthly message quota. Premium tiers are
// unrestricted. An unknown organization is refused.
func (g *Gate) Check(organizationID string) (*Result, error) {
	org, err := g.store.GetOrganization(organizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("organization %s not found", organizationID)
	}

	if org.HasPremiumAccess() {
		return &Result{Allowed: true, Remaining: -1, Tier: org.Tier}, nil
	}

	limit := org.MessageLimit()
	remaining := limit - org.CurrentUsage.MessagesSent
	if remaining < 0 {
		remaining = 0
	}

	allowed := remaining > 0
	if !allowed {
		log.Printf("[QUOTA] Organization %s exhausted its quota (%d/%d this month)",
			organizationID, org.CurrentUsage.MessagesSent, limit)
	}
	return &Result{Allowed: allowed, Remaining: remaining, Tier: org.Tier}, nil
}

// ExceededSet remembers tenants that hit their quota during one delivery
// pass, so later messages for the same tenant fail fast without another
// lookup. Each pass starts with a fresh set.
type ExceededSet map[string]struct{}

func NewExceededSet() ExceededSet {
	return make(ExceededSet)
}

func (s ExceededSet) Has(organizationID string) bool {
	_, ok := s[organizationID]
	return ok
}

func (s ExceededSet) Add(organizationID string) {
	s[organizationID] = struct{}{}
}
