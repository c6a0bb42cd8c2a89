package planner

import (
	"fmt"
	"strings"

	"eventflow/objects"
)

const (
	reminderDateFormat = "Monday, January 2"
	reminderTimeFormat = "15:04"
)

// BuildReminderContent renders the reminder text for one participant. An
// organization template wins when one exists, otherwise the built-in English
// text is used.
func BuildReminderContent(template string, schedule *objects.Schedule, participant *objects.Participant) string {
	name := ""
	if participant != nil {
		name = participant.DisplayName()
	}

	if template != "" {
		return SubstituteVariables(template, map[string]string{
			"participant_name": name,
			"schedule_title":   schedule.Title,
			"date":             schedule.StartTime.Format(reminderDateFormat),
			"time":             schedule.StartTime.Format(reminderTimeFormat),
			"location":         schedule.Location,
			"room":             schedule.Room,
			"speaker_name":     schedule.SpeakerName,
		})
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Hi %s! ", name)
	}
	fmt.Fprintf(&b, "Reminder: \"%s\" starts at %s on %s.",
		schedule.Title,
		schedule.StartTime.Format(reminderTimeFormat),
		schedule.StartTime.Format(reminderDateFormat))
	if schedule.Location != "" {
		fmt.Fprintf(&b, " Location: %s.", schedule.Location)
	}
	if schedule.Room != "" {
		fmt.Fprintf(&b, " Room: %s.", schedule.Room)
	}
	if schedule.SpeakerName != "" {
		fmt.Fprintf(&b, " Speaker: %s.", schedule.SpeakerName)
	}
	return b.String()
}

// SubstituteVariables replaces {{key}} placeholders with their values.
// Unknown placeholders are left intact.
func SubstituteVariables(template string, variables map[string]string) string {
	result := template
	for key, value := range variables {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
