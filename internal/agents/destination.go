package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// DestinationRecommender proposes exactly three destinations from the curated
// gazetteer, favoring seasonal fit for the trip month and spreading picks
// across states. It suspends the run for the user to choose.
func (a *Agents) DestinationRecommender(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()

	month := int(time.Now().UTC().Month())
	var interests []string
	if st.TripRequest != nil {
		if !st.TripRequest.StartDate.IsZero() {
			month = int(st.TripRequest.StartDate.Month())
		}
		interests = st.TripRequest.Interests
	}

	options := rankDestinations(a.deps.Geo.Cities(), month, interests)

	var names []string
	for _, o := range options {
		names = append(names, o.Name)
	}
	return &state.Update{
		DestinationOptions: options,
		CurrentStage:       state.StagePtr(state.StageDestinationPending),
		RequiresApproval:   state.Bool(true),
		ApprovalType:       state.Str(state.ApprovalDestination),
		ActiveAgents:       []string{NodeDestinationRecommender},
		AgentDecisions: []state.AgentDecision{
			decision(NodeDestinationRecommender, "recommend_destinations",
				fmt.Sprintf("month=%d interests=%v", month, interests),
				strings.Join(names, ", "), 0, started),
		},
	}, nil
}

// rankDestinations scores every curated city and keeps the top three, at
// most one per state.
func rankDestinations(cities []geo.City, month int, interests []string) []state.DestinationSuggestion {
	wanted := map[string]bool{}
	for _, i := range interests {
		wanted[strings.ToLower(i)] = true
	}

	type scored struct {
		city  geo.City
		score float64
	}
	var ranked []scored
	for _, c := range cities {
		s := 0.0
		if c.SeasonFit(month) {
			s += 3
		}
		for _, tag := range c.Tags {
			if wanted[strings.ToLower(tag)] {
				s += 2
			}
		}
		ranked = append(ranked, scored{c, s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].city.Name < ranked[j].city.Name
	})

	var out []state.DestinationSuggestion
	usedStates := map[string]bool{}
	for _, r := range ranked {
		if usedStates[r.city.State] {
			continue
		}
		usedStates[r.city.State] = true
		out = append(out, suggestion(r.city, month, wanted))
		if len(out) == 3 {
			return out
		}
	}
	// Not enough state diversity; fill remaining slots ignoring the rule.
	for _, r := range ranked {
		if len(out) == 3 {
			break
		}
		dup := false
		for _, o := range out {
			if o.Name == r.city.Name {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, suggestion(r.city, month, wanted))
		}
	}
	return out
}

func suggestion(c geo.City, month int, wanted map[string]bool) state.DestinationSuggestion {
	reason := "popular pick"
	var matched []string
	for _, tag := range c.Tags {
		if wanted[strings.ToLower(tag)] {
			matched = append(matched, tag)
		}
	}
	fit := c.SeasonFit(month)
	switch {
	case fit && len(matched) > 0:
		reason = fmt.Sprintf("in season and matches %s", strings.Join(matched, ", "))
	case fit:
		reason = fmt.Sprintf("%s weather is at its best this month", c.Name)
	case len(matched) > 0:
		reason = fmt.Sprintf("matches %s", strings.Join(matched, ", "))
	}
	return state.DestinationSuggestion{
		Name:      c.Name,
		State:     c.State,
		Reason:    reason,
		BestFor:   c.Tags,
		SeasonFit: fit,
	}
}
