package planner

import (
	"testing"
	"time"

	"eventflow/objects"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteVariables(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		expected string
	}{
		{
			name:     "single placeholder",
			template: "Hi {{participant_name}}!",
			vars:     map[string]string{"participant_name": "Alice"},
			expected: "Hi Alice!",
		},
		{
			name:     "repeated placeholder",
			template: "{{time}} and again {{time}}",
			vars:     map[string]string{"time": "10:00"},
			expected: "10:00 and again 10:00",
		},
		{
			name:     "unknown placeholder stays intact",
			template: "See you at {{venue}}",
			vars:     map[string]string{"location": "Hall A"},
			expected: "See you at {{venue}}",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			vars:     map[string]string{"time": "10:00"},
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SubstituteVariables(tt.template, tt.vars))
		})
	}
}

func TestBuildReminderContentFallback(t *testing.T) {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	schedule := objects.NewSchedule("event-1", "Opening Keynote", start, start.Add(time.Hour))
	schedule.Location = "Main Hall"
	schedule.SpeakerName = "Dana Levi"

	participant := &objects.Participant{FirstName: "Alice", Phone: "0501234567"}

	content := BuildReminderContent("", schedule, participant)
	assert.Contains(t, content, "Hi Alice!")
	assert.Contains(t, content, "Opening Keynote")
	assert.Contains(t, content, "10:00")
	assert.Contains(t, content, "Monday, September 14")
	assert.Contains(t, content, "Location: Main Hall.")
	assert.Contains(t, content, "Speaker: Dana Levi.")
	assert.NotContains(t, content, "Room:")
}

func TestBuildReminderContentWithoutParticipant(t *testing.T) {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	schedule := objects.NewSchedule("event-1", "Workshop", start, start.Add(time.Hour))

	content := BuildReminderContent("", schedule, nil)
	assert.NotContains(t, content, "Hi ")
	assert.Contains(t, content, "Workshop")
}
