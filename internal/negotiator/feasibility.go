package negotiator

import (
	"fmt"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Day model for schedule feasibility: 8 h sleep and 2 h meals are fixed, the
// rest is split between activities and slack.
const (
	sleepHours       = 8
	mealHours        = 2
	maxDailyHours    = 10
	minBufferMinutes = 60
)

// validateFeasibility checks one bundle against the day model, repairing
// overpacked schedules by dropping longest activities until the rule passes
// or its floor is reached (3 activities for the hours rule, 1 for the slack
// rule). A bundle that comes out of one pass is unchanged by another.
func validateFeasibility(b *state.BundleChoice, days int) []string {
	if days < 1 {
		days = 1
	}
	var issues []string

	daily := totalActivityHours(b.Activities) / float64(days)
	if daily > maxDailyHours {
		issues = append(issues, fmt.Sprintf("bundle %s: %.1f activity hours/day exceeds %d", b.Label, daily, maxDailyHours))
		for daily > maxDailyHours && len(b.Activities) > 3 {
			dropped := dropLongest(b)
			issues = append(issues, fmt.Sprintf("bundle %s: dropped %q to relieve the schedule", b.Label, dropped))
			daily = totalActivityHours(b.Activities) / float64(days)
		}
	}

	bufferMin := (24 - sleepHours - mealHours - daily) * 60
	if bufferMin < minBufferMinutes {
		issues = append(issues, fmt.Sprintf("bundle %s: only %.0f min of daily slack", b.Label, bufferMin))
		for bufferMin < minBufferMinutes && len(b.Activities) > 1 {
			dropped := dropLongest(b)
			issues = append(issues, fmt.Sprintf("bundle %s: dropped %q to restore slack", b.Label, dropped))
			daily = totalActivityHours(b.Activities) / float64(days)
			bufferMin = (24 - sleepHours - mealHours - daily) * 60
		}
	}

	if b.Transport.DurationMinutes > 24*60 {
		issues = append(issues, fmt.Sprintf("bundle %s: transport runs %d min, over a full day", b.Label, b.Transport.DurationMinutes))
	}

	b.Issues = append(b.Issues, issues...)
	return issues
}

func totalActivityHours(acts []state.ActivityOption) float64 {
	var h float64
	for _, a := range acts {
		h += a.DurationHours
	}
	return h
}

// dropLongest removes the single longest activity and returns its name.
// Ties break on name so the repair is deterministic.
func dropLongest(b *state.BundleChoice) string {
	idx := 0
	for i, a := range b.Activities {
		if a.DurationHours > b.Activities[idx].DurationHours ||
			(a.DurationHours == b.Activities[idx].DurationHours && a.Name < b.Activities[idx].Name) {
			idx = i
		}
	}
	dropped := b.Activities[idx]
	b.Activities = append(b.Activities[:idx:idx], b.Activities[idx+1:]...)
	return dropped.Name
}
