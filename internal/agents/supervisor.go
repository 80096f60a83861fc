package agents

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

const supervisorPrompt = `You are the router of a travel planning assistant.
Classify the user's message as exactly one of:
  "plan"         - a new trip request
  "modify"       - a change to an already planned trip
  "conversation" - a question or chat that needs no planning
Respond as JSON: {"intent": "...", "reason": "..."}`

var questionWords = []string{"what", "how", "when", "where", "why", "which", "should", "can i", "is it", "tell me"}

var modifyWords = []string{"change", "instead", "swap", "replace", "increase", "decrease", "cheaper", "what if", "add ", "remove ", "upgrade"}

// Supervisor classifies the intent of the raw query, preferring the LLM and
// falling back to keyword heuristics.
func (a *Agents) Supervisor(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()

	intent, reasoning, tokens := a.classifyWithLLM(ctx, st)
	if intent == "" {
		intent, reasoning = classifyHeuristic(st)
	}

	upd := &state.Update{
		IntentType:   state.IntentPtr(intent),
		CurrentStage: state.StagePtr(state.StageIntentParsed),
		ActiveAgents: []string{NodeSupervisor},
		AgentDecisions: []state.AgentDecision{
			decision(NodeSupervisor, "classify_intent", reasoning, string(intent), tokens, started),
		},
	}
	return upd, nil
}

func (a *Agents) classifyWithLLM(ctx context.Context, st *state.PlannerState) (state.IntentType, string, int) {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return "", "", 0
	}
	res, err := a.deps.LLM.Complete(ctx, supervisorPrompt, st.RawQuery, true)
	if err != nil {
		a.log.Debug("supervisor llm unavailable, using heuristic")
		return "", "", 0
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return "", "", res.TokensUsed
	}
	var out struct {
		Intent string `json:"intent"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return "", "", res.TokensUsed
	}
	switch state.IntentType(out.Intent) {
	case state.IntentPlan, state.IntentModify, state.IntentConversation:
		return state.IntentType(out.Intent), out.Reason, res.TokensUsed
	}
	return "", "", res.TokensUsed
}

// classifyHeuristic keys off whether a trip already exists and whether the
// query reads as a question or a change request.
func classifyHeuristic(st *state.PlannerState) (state.IntentType, string) {
	q := strings.ToLower(st.RawQuery)
	if st.Trip != nil {
		for _, w := range modifyWords {
			if strings.Contains(q, w) {
				return state.IntentModify, "existing trip plus change keyword"
			}
		}
		if strings.Contains(q, "?") {
			return state.IntentConversation, "existing trip plus question mark"
		}
		for _, w := range questionWords {
			if strings.HasPrefix(q, w) || strings.Contains(q, " "+w+" ") {
				return state.IntentConversation, "existing trip plus question phrasing"
			}
		}
	}
	return state.IntentPlan, "default planning intent"
}
