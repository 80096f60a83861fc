package agents

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

const intentPrompt = `Extract a structured trip request from the user's message.
Respond as JSON:
{"origin": "", "destination": "", "duration_days": 0, "budget_inr": 0,
 "travelers": 0, "travel_style": "backpacker|balanced|luxury|family",
 "interests": []}
Leave fields empty or zero when the message does not state them. Amounts like
"15k" mean thousands of rupees. Do not invent a destination.`

var (
	budgetKRe    = regexp.MustCompile(`(?i)(?:₹|rs\.?\s*|inr\s*)?(\d+(?:\.\d+)?)\s*k\b`)
	budgetFullRe = regexp.MustCompile(`(?i)(?:₹|rs\.?\s*|inr\s*)(\d{4,7})\b`)
	daysRe       = regexp.MustCompile(`(?i)(\d+)[\s-]*(?:day|days|din)\b`)
	nightsRe     = regexp.MustCompile(`(?i)(\d+)[\s-]*(?:night|nights)\b`)
	peopleRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons|friends|adults|travellers|travelers)\b`)
)

var styleWords = map[string]string{
	"backpack": "backpacker",
	"budget":   "backpacker",
	"cheap":    "backpacker",
	"hostel":   "backpacker",
	"luxury":   "luxury",
	"premium":  "luxury",
	"5 star":   "luxury",
	"family":   "family",
	"kids":     "family",
}

var interestWords = map[string][]string{
	"adventure": {"adventure", "rafting", "trek", "trekking", "bungee", "paragliding", "hike"},
	"spiritual": {"spiritual", "yoga", "temple", "ashram", "meditation", "pilgrimage"},
	"food":      {"food", "foodie", "cuisine", "street food", "eat"},
	"culture":   {"culture", "heritage", "museum", "art"},
	"history":   {"history", "historical", "fort", "monument"},
	"nature":    {"nature", "wildlife", "mountains", "waterfall", "lake"},
	"beach":     {"beach", "beaches", "coast", "sea"},
	"nightlife": {"nightlife", "party", "clubs"},
	"shopping":  {"shopping", "bazaar", "market"},
	"wellness":  {"wellness", "spa", "relax"},
}

// IntentParser extracts the structured trip request, merging the LLM's view
// with keyword heuristics so a missing LLM never blocks planning.
func (a *Agents) IntentParser(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()

	req, tokens, source := a.parseWithLLM(ctx, st.RawQuery)
	heur := a.parseHeuristic(st.RawQuery)
	req = mergeRequests(req, heur)

	// A too-short destination is noise; clearing it routes the run through
	// the destination recommender.
	if len(strings.TrimSpace(req.Destination)) < 4 {
		req.Destination = ""
	}

	if req.StartDate.IsZero() {
		req.StartDate = time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
		req.EndDate = req.StartDate.AddDate(0, 0, heurDays(st.RawQuery)-1)
	}

	stage := state.StageSearching
	if req.Destination == "" {
		stage = state.StageDestinationPending
	}

	summary := "destination=" + orUnset(req.Destination) + " budget=" + strconv.FormatFloat(req.BudgetINR, 'f', 0, 64)
	return &state.Update{
		TripRequest:  req,
		CurrentStage: state.StagePtr(stage),
		ActiveAgents: []string{NodeIntentParser},
		AgentDecisions: []state.AgentDecision{
			decision(NodeIntentParser, "parse_request", source, summary, tokens, started),
		},
	}, nil
}

func (a *Agents) parseWithLLM(ctx context.Context, query string) (*state.TripRequest, int, string) {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil, 0, "heuristic parse (llm unconfigured)"
	}
	res, err := a.deps.LLM.Complete(ctx, intentPrompt, query, true)
	if err != nil {
		return nil, 0, "heuristic parse (llm failed)"
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil, res.TokensUsed, "heuristic parse (llm output unparseable)"
	}
	var out struct {
		Origin       string   `json:"origin"`
		Destination  string   `json:"destination"`
		DurationDays int      `json:"duration_days"`
		BudgetINR    float64  `json:"budget_inr"`
		Travelers    int      `json:"travelers"`
		TravelStyle  string   `json:"travel_style"`
		Interests    []string `json:"interests"`
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, res.TokensUsed, "heuristic parse (llm schema mismatch)"
	}
	req := &state.TripRequest{
		Origin:      strings.TrimSpace(out.Origin),
		Destination: strings.TrimSpace(out.Destination),
		BudgetINR:   out.BudgetINR,
		Travelers:   out.Travelers,
		TravelStyle: out.TravelStyle,
		Interests:   out.Interests,
	}
	if out.DurationDays > 0 {
		req.StartDate = time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
		req.EndDate = req.StartDate.AddDate(0, 0, out.DurationDays-1)
	}
	return req, res.TokensUsed, "llm parse merged with heuristics"
}

// parseHeuristic scans the query against the gazetteer and keyword lists.
func (a *Agents) parseHeuristic(query string) *state.TripRequest {
	q := strings.ToLower(query)
	req := &state.TripRequest{Travelers: 1, TravelStyle: "balanced"}

	// Cities: "from X" marks the origin, any other gazetteer hit is the
	// destination.
	if a.deps.Geo != nil {
		for _, c := range a.deps.Geo.Cities() {
			names := append([]string{c.Name}, c.Aliases...)
			for _, n := range names {
				ln := strings.ToLower(n)
				idx := strings.Index(q, ln)
				if idx < 0 {
					continue
				}
				if isFromCity(q, idx) {
					req.Origin = c.Name
				} else if req.Destination == "" {
					req.Destination = c.Name
					// Destination tags double as default interests.
					req.Interests = append(req.Interests, c.Tags...)
				}
			}
		}
	}

	if m := budgetKRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			req.BudgetINR = v * 1000
		}
	} else if m := budgetFullRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			req.BudgetINR = v
		}
	}

	days := heurDays(query)
	req.StartDate = time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	req.EndDate = req.StartDate.AddDate(0, 0, days-1)

	switch {
	case strings.Contains(q, "solo"):
		req.Travelers = 1
		if req.TravelStyle == "balanced" {
			req.TravelStyle = "backpacker"
		}
	case strings.Contains(q, "couple") || strings.Contains(q, "honeymoon"):
		req.Travelers = 2
	case strings.Contains(q, "family"):
		req.Travelers = 4
	}
	if m := peopleRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			req.Travelers = v
		}
	}

	for word, style := range styleWords {
		if strings.Contains(q, word) {
			req.TravelStyle = style
			break
		}
	}
	for interest, words := range interestWords {
		for _, w := range words {
			if strings.Contains(q, w) {
				req.Interests = append(req.Interests, interest)
				break
			}
		}
	}
	req.Interests = dedupStrings(req.Interests)
	return req
}

func heurDays(query string) int {
	q := strings.ToLower(query)
	if m := daysRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			return v
		}
	}
	if m := nightsRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			return v + 1
		}
	}
	if strings.Contains(q, "long weekend") {
		return 4
	}
	if strings.Contains(q, "weekend") {
		return 3
	}
	if strings.Contains(q, "week") {
		return 7
	}
	return 3
}

// isFromCity reports whether the city mention at idx is preceded by "from".
func isFromCity(q string, idx int) bool {
	prefix := q[:idx]
	prefix = strings.TrimRight(prefix, " ")
	return strings.HasSuffix(prefix, "from")
}

// mergeRequests prefers the LLM's fields, filling gaps from the heuristics.
func mergeRequests(llmReq, heur *state.TripRequest) *state.TripRequest {
	if llmReq == nil {
		return heur
	}
	if llmReq.Origin == "" {
		llmReq.Origin = heur.Origin
	}
	if llmReq.Destination == "" {
		llmReq.Destination = heur.Destination
	}
	if llmReq.BudgetINR == 0 {
		llmReq.BudgetINR = heur.BudgetINR
	}
	if llmReq.Travelers == 0 {
		llmReq.Travelers = heur.Travelers
	}
	if llmReq.TravelStyle == "" {
		llmReq.TravelStyle = heur.TravelStyle
	}
	if llmReq.StartDate.IsZero() {
		llmReq.StartDate = heur.StartDate
		llmReq.EndDate = heur.EndDate
	}
	llmReq.Interests = dedupStrings(append(llmReq.Interests, heur.Interests...))
	return llmReq
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
