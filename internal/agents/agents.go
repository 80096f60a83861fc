// Package agents holds the node functions of the planning pipeline. Every
// node is a pure function from a state snapshot to a typed partial update,
// appends one audit decision, and records failures as data instead of
// returning errors into the runtime.
package agents

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/negotiator"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/providers"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Node names, used for graph wiring and routing.
const (
	NodeSupervisor            = "supervisor"
	NodeIntentParser          = "intent_parser"
	NodeDestinationRecommender = "destination_recommender"
	NodeSearchDispatcher      = "search_dispatcher"
	NodeFlightSearch          = "flight_search"
	NodeHotelSearch           = "hotel_search"
	NodeActivitySearch        = "activity_search"
	NodeWeatherCheck          = "weather_check"
	NodeSearchAggregator      = "search_aggregator"
	NodeEnrichmentDispatcher  = "enrichment_dispatcher"
	NodeFestivalCheck         = "festival_check"
	NodeLocalIntel            = "local_intel"
	NodeEnrichmentAggregator  = "enrichment_aggregator"
	NodeResearchGate          = "research_gate"
	NodeNegotiation           = "negotiation"
	NodeBudgetOptimizer       = "budget_optimizer"
	NodeItineraryBuilder      = "itinerary_builder"
	NodeResponseValidator     = "response_validator"
	NodeVibeScorer            = "vibe_scorer"
	NodeFinalGate             = "final_gate"
	NodeConversation          = "conversation_responder"
)

// Adapter interfaces: nodes depend on the narrow search methods so tests can
// stub providers without HTTP.

type FlightAPI interface {
	Configured() bool
	SearchFlights(ctx context.Context, originIATA, destIATA string, departDate time.Time, adults int) ([]state.TransportOption, string)
}

type HotelAPI interface {
	Configured() bool
	SearchHotels(ctx context.Context, cityName string, checkin, checkout time.Time, adults, nights int) ([]state.HotelOption, string)
}

type PlacesAPI interface {
	Configured() bool
	SearchActivities(ctx context.Context, destination string, interests []string) ([]state.ActivityOption, string)
}

type WeatherAPI interface {
	Forecast(ctx context.Context, destination string, lat, lon float64, start, end time.Time) (*state.WeatherSummary, string)
}

type WebSearchAPI interface {
	Configured() bool
	Search(ctx context.Context, query string, maxResults int) (*providers.Answer, string)
	FestivalEvents(ctx context.Context, destination, window string) ([]state.EventInfo, string)
}

type RedditAPI interface {
	Configured() bool
	LocalTips(ctx context.Context, destination string) ([]state.LocalTip, string)
}

// Deps carries every external dependency a node can touch.
type Deps struct {
	LLM        llm.Client
	Geo        *geo.Resolver
	Flights    FlightAPI
	Hotels     HotelAPI
	Places     PlacesAPI
	Weather    WeatherAPI
	Web        WebSearchAPI
	Reddit     RedditAPI
	Negotiator *negotiator.Negotiator
	Logger     *zap.Logger
}

// Agents binds the node methods to their dependencies.
type Agents struct {
	deps Deps
	log  *zap.Logger
}

// New builds the node set. Nil adapters are treated as unconfigured.
func New(deps Deps) *Agents {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Agents{deps: deps, log: deps.Logger.Named("agents")}
}

// decision builds the audit record every node appends.
func decision(agent, action, reasoning, summary string, tokens int, started time.Time) state.AgentDecision {
	return state.AgentDecision{
		Agent:         agent,
		Action:        action,
		Reasoning:     reasoning,
		ResultSummary: summary,
		TokensUsed:    tokens,
		LatencyMS:     time.Since(started).Milliseconds(),
		At:            time.Now().UTC(),
	}
}

// failing wraps an error message for the shared error stream.
func failing(node string, err error) string {
	return fmt.Sprintf("%s: %v", node, err)
}
