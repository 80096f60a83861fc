package engine

import (
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/agents"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// buildGraph wires the planning pipeline:
//
//	supervisor -> intent_parser -> (destination_recommender | search_dispatcher)
//	search_dispatcher fans out to flight/hotel/activity/weather, joined at
//	search_aggregator; enrichment_dispatcher fans out to festival_check and
//	local_intel, joined at enrichment_aggregator; then research_gate,
//	negotiation, budget_optimizer, itinerary_builder, response_validator,
//	vibe_scorer, final_gate. Conversation queries branch off the supervisor
//	straight to the responder.
//
// The gates suspend the run; resume re-enters mid-pipeline via RunFrom.
func buildGraph(a *agents.Agents) *graph.Graph {
	g := graph.New()

	g.AddNode(agents.NodeSupervisor, a.Supervisor)
	g.AddNode(agents.NodeIntentParser, a.IntentParser)
	g.AddNode(agents.NodeDestinationRecommender, a.DestinationRecommender)
	g.AddNode(agents.NodeSearchDispatcher, a.SearchDispatcher)
	g.AddNode(agents.NodeFlightSearch, a.FlightSearch)
	g.AddNode(agents.NodeHotelSearch, a.HotelSearch)
	g.AddNode(agents.NodeActivitySearch, a.ActivitySearch)
	g.AddNode(agents.NodeWeatherCheck, a.WeatherCheck)
	g.AddNode(agents.NodeSearchAggregator, a.SearchAggregator)
	g.AddNode(agents.NodeEnrichmentDispatcher, a.EnrichmentDispatcher)
	g.AddNode(agents.NodeFestivalCheck, a.FestivalCheck)
	g.AddNode(agents.NodeLocalIntel, a.LocalIntel)
	g.AddNode(agents.NodeEnrichmentAggregator, a.EnrichmentAggregator)
	g.AddNode(agents.NodeResearchGate, a.ResearchGate)
	g.AddNode(agents.NodeNegotiation, a.Negotiation)
	g.AddNode(agents.NodeBudgetOptimizer, a.BudgetOptimizer)
	g.AddNode(agents.NodeItineraryBuilder, a.ItineraryBuilder)
	g.AddNode(agents.NodeResponseValidator, a.ResponseValidator)
	g.AddNode(agents.NodeVibeScorer, a.VibeScorer)
	g.AddNode(agents.NodeFinalGate, a.FinalGate)
	g.AddNode(agents.NodeConversation, a.ConversationResponder)

	g.SetEntry(agents.NodeSupervisor)

	g.AddRouter(agents.NodeSupervisor, func(st *state.PlannerState) graph.Route {
		if st.IntentType == state.IntentConversation {
			return graph.Route{Next: agents.NodeConversation}
		}
		return graph.Route{Next: agents.NodeIntentParser}
	})

	g.AddRouter(agents.NodeIntentParser, func(st *state.PlannerState) graph.Route {
		if st.TripRequest == nil || st.TripRequest.Destination == "" {
			return graph.Route{Next: agents.NodeDestinationRecommender}
		}
		return graph.Route{Next: agents.NodeSearchDispatcher}
	})

	// The recommender suspends for the destination pick; the static edge is
	// the path a resume takes when the pick never needed approval.
	g.AddEdge(agents.NodeDestinationRecommender, agents.NodeSearchDispatcher)

	g.AddRouter(agents.NodeSearchDispatcher, func(st *state.PlannerState) graph.Route {
		return graph.Route{Dispatches: []graph.Dispatch{
			{Target: agents.NodeFlightSearch, Snapshot: st.Clone()},
			{Target: agents.NodeHotelSearch, Snapshot: st.Clone()},
			{Target: agents.NodeActivitySearch, Snapshot: st.Clone()},
			{Target: agents.NodeWeatherCheck, Snapshot: st.Clone()},
		}}
	})
	g.AddEdge(agents.NodeFlightSearch, agents.NodeSearchAggregator)
	g.AddEdge(agents.NodeHotelSearch, agents.NodeSearchAggregator)
	g.AddEdge(agents.NodeActivitySearch, agents.NodeSearchAggregator)
	g.AddEdge(agents.NodeWeatherCheck, agents.NodeSearchAggregator)

	g.AddEdge(agents.NodeSearchAggregator, agents.NodeEnrichmentDispatcher)
	g.AddRouter(agents.NodeEnrichmentDispatcher, func(st *state.PlannerState) graph.Route {
		return graph.Route{Dispatches: []graph.Dispatch{
			{Target: agents.NodeFestivalCheck, Snapshot: st.Clone()},
			{Target: agents.NodeLocalIntel, Snapshot: st.Clone()},
		}}
	})
	g.AddEdge(agents.NodeFestivalCheck, agents.NodeEnrichmentAggregator)
	g.AddEdge(agents.NodeLocalIntel, agents.NodeEnrichmentAggregator)

	g.AddEdge(agents.NodeEnrichmentAggregator, agents.NodeResearchGate)
	g.AddEdge(agents.NodeResearchGate, agents.NodeNegotiation)
	g.AddEdge(agents.NodeNegotiation, agents.NodeBudgetOptimizer)
	g.AddEdge(agents.NodeBudgetOptimizer, agents.NodeItineraryBuilder)
	g.AddEdge(agents.NodeItineraryBuilder, agents.NodeResponseValidator)
	g.AddEdge(agents.NodeResponseValidator, agents.NodeVibeScorer)
	g.AddEdge(agents.NodeVibeScorer, agents.NodeFinalGate)
	g.AddEdge(agents.NodeFinalGate, graph.End)
	g.AddEdge(agents.NodeConversation, graph.End)

	return g
}
