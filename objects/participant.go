package objects

// Participant represents a registered attendee of an event
type Participant struct {
	ID        string
	EventID   string
	FirstName string
	LastName  string
	FullName  string
	Phone     string
	Status    string // 'invited', 'confirmed', 'cancelled'
}

// Participant status constants
const (
	ParticipantStatusInvited   = "invited"
	ParticipantStatusConfirmed = "confirmed"
	ParticipantStatusCancelled = "cancelled"
)

// DisplayName returns the full name, falling back to first + last name
func (p *Participant) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// IsContactable reports whether the participant can receive messages.
// Participants without a phone number are excluded from reminder plans.
func (p *Participant) IsContactable() bool {
	return p.Phone != ""
}
