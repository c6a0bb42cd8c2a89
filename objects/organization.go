package objects

// Tier constants
const (
	TierBase          = "base"
	TierPremium       = "premium"
	TierLegacyPremium = "legacy_premium"
)

// DefaultMessagesPerMonth is the base-tier message limit applied when the
// stored tier limits carry no value.
const DefaultMessagesPerMonth = 200

// TierLimits holds the per-period limits of an organization's tier
type TierLimits struct {
	EventsPerYear          int `json:"events_per_year"`
	ParticipantsPerEvent   int `json:"participants_per_event"`
	MessagesPerMonth       int `json:"messages_per_month"`
	AIChatMessagesPerMonth int `json:"ai_chat_messages_per_month"`
}

// UsageMetrics holds the organization's current-period usage counters.
// The reminder pipeline only ever reads these; the billing collaborator
// owns the increments.
type UsageMetrics struct {
	EventsCount       int    `json:"events_count"`
	ParticipantsCount int    `json:"participants_count"`
	MessagesSent      int    `json:"messages_sent"`
	AIMessagesSent    int    `json:"ai_messages_sent"`
	PeriodStart       string `json:"period_start"`
	PeriodEnd         string `json:"period_end"`
}

// Organization is the tenant that owns events, participants and messages
type Organization struct {
	ID           string
	Name         string
	Tier         string
	TierLimits   TierLimits
	CurrentUsage UsageMetrics
}

// HasPremiumAccess reports whether the tier is unrestricted for sends
func (o *Organization) HasPremiumAccess() bool {
	return o.Tier == TierPremium || o.Tier == TierLegacyPremium
}

// MessageLimit returns the monthly message limit, with the base default
// applied when unset.
func (o *Organization) MessageLimit() int {
	if o.TierLimits.MessagesPerMonth > 0 {
		return o.TierLimits.MessagesPerMonth
	}
	return DefaultMessagesPerMonth
}
