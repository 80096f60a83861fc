package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// ConversationResponder answers a question about the current trip without
// touching the plan. Without an LLM it summarizes the plan from state.
func (a *Agents) ConversationResponder(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()

	var reply string
	var tokens int
	if a.deps.LLM != nil && a.deps.LLM.Configured() {
		res, err := a.deps.LLM.Complete(ctx,
			"You are a travel assistant. Answer the user's question using only the trip context provided. Be concise.",
			conversationContext(st), false)
		if err == nil && res.Content != "" {
			reply = strings.TrimSpace(res.Content)
			tokens = res.TokensUsed
		}
	}
	if reply == "" {
		reply = cannedReply(st)
	}

	return &state.Update{
		ConversationResponse: state.Str(reply),
		ActiveAgents:         []string{NodeConversation},
		AgentDecisions: []state.AgentDecision{
			decision(NodeConversation, "answer_question", "", fmt.Sprintf("%d chars", len(reply)), tokens, started),
		},
	}, nil
}

func conversationContext(st *state.PlannerState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", st.RawQuery)
	if st.Trip != nil {
		fmt.Fprintf(&b, "Current plan: %s, %d days, total ₹%.0f\n",
			st.Trip.Destination, len(st.Trip.Days), st.Trip.TotalCostINR)
		for _, day := range st.Trip.Days {
			fmt.Fprintf(&b, "%s: ", day.Date.Format("Mon 2 Jan"))
			var titles []string
			for _, it := range day.Items {
				titles = append(titles, it.Title)
			}
			b.WriteString(strings.Join(titles, "; ") + "\n")
		}
	} else if st.TripRequest != nil {
		fmt.Fprintf(&b, "Planning in progress for %s\n", st.TripRequest.Destination)
	}
	if st.Weather != nil {
		fmt.Fprintf(&b, "Weather: %s\n", st.Weather.Summary)
	}
	return b.String()
}

func cannedReply(st *state.PlannerState) string {
	if st.Trip != nil {
		return fmt.Sprintf("Your current plan covers %d days in %s at a total of ₹%.0f. Ask for a change and I will re-plan.",
			len(st.Trip.Days), st.Trip.Destination, st.Trip.TotalCostINR)
	}
	if st.TripRequest != nil && st.TripRequest.Destination != "" {
		return fmt.Sprintf("I am still putting together your %s trip. Resume the run to continue planning.", st.TripRequest.Destination)
	}
	return "Tell me where you want to go, for how long, and your budget, and I will plan the trip."
}
