package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/providers"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Flights are pointless below this great-circle distance; ground transport
// wins on door-to-door time.
const shortHopKM = 200

// SearchDispatcher marks the research fan-out. The router attached to this
// node issues the parallel dispatches.
func (a *Agents) SearchDispatcher(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	return &state.Update{
		CurrentStage: state.StagePtr(state.StageSearching),
		ActiveAgents: []string{NodeFlightSearch, NodeHotelSearch, NodeActivitySearch, NodeWeatherCheck},
		AgentDecisions: []state.AgentDecision{
			decision(NodeSearchDispatcher, "dispatch_research", "fan out to the four research agents", "", 0, started),
		},
	}, nil
}

// FlightSearch geocodes both endpoints, applies the short-hop rule, queries
// the flight API with a web-search fallback, and always attaches ground
// transport from the fare tables.
func (a *Agents) FlightSearch(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		upd.Errors = []string{NodeFlightSearch + ": no destination to search"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeFlightSearch, "search_flights", "no destination", "skipped", 0, started),
		}
		return upd, nil
	}
	req := st.TripRequest
	origin := req.Origin
	if origin == "" {
		origin = "Delhi"
	}

	op, err1 := a.resolvePlace(ctx, origin)
	dp, err2 := a.resolvePlace(ctx, req.Destination)
	if err1 != nil || err2 != nil {
		upd.Errors = append(upd.Errors, failing(NodeFlightSearch, fmt.Errorf("geocoding failed: %v / %v", err1, err2)))
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeFlightSearch, "search_flights", "geocoding failed", "no results", 0, started),
		}
		return upd, nil
	}
	distance := geo.HaversineKM(op, dp)

	var reasoning string
	if distance < shortHopKM {
		reasoning = fmt.Sprintf("%.0f km is a short hop; skipping flights", distance)
	} else {
		flights, reason := a.searchFlightsAPI(ctx, origin, req)
		if len(flights) == 0 && reason != "" {
			upd.Errors = append(upd.Errors, NodeFlightSearch+": "+reason)
			flights = a.flightsFromWeb(ctx, origin, req, distance)
		}
		upd.FlightOptions = flights
		reasoning = fmt.Sprintf("%.0f km apart, %d flight options", distance, len(flights))
	}

	upd.GroundTransportOptions = providers.GroundTransportOptions(origin, req.Destination, distance, req.Travelers)
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeFlightSearch, "search_flights", reasoning,
			fmt.Sprintf("%d flights, %d ground options", len(upd.FlightOptions), len(upd.GroundTransportOptions)), 0, started),
	}
	return upd, nil
}

// resolvePlace tries the gazetteer, then Nominatim, then one LLM guess.
func (a *Agents) resolvePlace(ctx context.Context, place string) (geo.Point, error) {
	p, _, err := a.deps.Geo.Resolve(ctx, place)
	if err == nil {
		return p, nil
	}
	if a.deps.LLM != nil && a.deps.LLM.Configured() {
		res, lerr := a.deps.LLM.Complete(ctx,
			`Respond as JSON {"lat": 0.0, "lon": 0.0} with the coordinates of the named Indian place.`,
			place, true)
		if lerr == nil {
			if doc := llm.ExtractJSON(res.Content); doc != nil {
				var out geo.Point
				if json.Unmarshal(doc, &out) == nil && out.Lat != 0 {
					return out, nil
				}
			}
		}
	}
	return geo.Point{}, err
}

func (a *Agents) searchFlightsAPI(ctx context.Context, origin string, req *state.TripRequest) ([]state.TransportOption, string) {
	if a.deps.Flights == nil || !a.deps.Flights.Configured() {
		return nil, "flight api not configured"
	}
	oc, ok1 := a.deps.Geo.Lookup(origin)
	dc, ok2 := a.deps.Geo.Lookup(req.Destination)
	if !ok1 || !ok2 || oc.IATA == "" || dc.IATA == "" {
		return nil, "no airport code for route"
	}
	return a.deps.Flights.SearchFlights(ctx, oc.IATA, dc.IATA, req.StartDate, req.Travelers)
}

// flightsFromWeb builds one estimated option from a web-search answer; the
// price falls back to a distance heuristic when the answer has no figure.
func (a *Agents) flightsFromWeb(ctx context.Context, origin string, req *state.TripRequest, distance float64) []state.TransportOption {
	if a.deps.Web == nil || !a.deps.Web.Configured() {
		return nil
	}
	ans, _ := a.deps.Web.Search(ctx,
		fmt.Sprintf("cheapest flight %s to %s price INR", origin, req.Destination), 3)
	if ans == nil {
		return nil
	}
	opt := state.TransportOption{
		Mode:            state.ModeFlight,
		Operator:        "Typical carrier (web estimate)",
		Origin:          origin,
		Destination:     req.Destination,
		PriceINR:        math.Max(3000, distance*4),
		Currency:        "INR",
		DurationMinutes: int(distance/700*60) + 60,
		Rating:          3.5,
		Source:          state.SourceTavilyWeb,
		Verified:        false,
	}
	opt.ID = "web-" + strings.ToLower(strings.ReplaceAll(req.Destination, " ", "-"))
	return []state.TransportOption{opt}
}

// HotelSearch tries the hotel API, then web search, then LLM generation.
func (a *Agents) HotelSearch(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		upd.Errors = []string{NodeHotelSearch + ": no destination to search"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeHotelSearch, "search_hotels", "no destination", "skipped", 0, started),
		}
		return upd, nil
	}
	req := st.TripRequest

	var hotels []state.HotelOption
	var chain []string
	if a.deps.Hotels != nil && a.deps.Hotels.Configured() {
		var reason string
		hotels, reason = a.deps.Hotels.SearchHotels(ctx, req.Destination, req.StartDate, req.EndDate, req.Travelers, req.Nights())
		if reason != "" {
			chain = append(chain, "api: "+reason)
		}
	} else {
		chain = append(chain, "api: unconfigured")
	}
	if len(hotels) == 0 {
		hotels = a.hotelsFromWeb(ctx, req)
		if len(hotels) == 0 {
			chain = append(chain, "web: no results")
		}
	}
	if len(hotels) == 0 {
		hotels = a.hotelsFromLLM(ctx, req)
		if len(hotels) == 0 {
			chain = append(chain, "llm: no generation")
		}
	}

	upd.HotelOptions = hotels
	if len(hotels) == 0 {
		upd.Errors = []string{NodeHotelSearch + ": " + strings.Join(chain, "; ")}
	}
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeHotelSearch, "search_hotels", strings.Join(chain, "; "),
			fmt.Sprintf("%d hotels", len(hotels)), 0, started),
	}
	return upd, nil
}

// hotelsFromWeb shapes search hits into estimated stay candidates; prices
// come from the style-appropriate band since hits carry none.
func (a *Agents) hotelsFromWeb(ctx context.Context, req *state.TripRequest) []state.HotelOption {
	if a.deps.Web == nil || !a.deps.Web.Configured() {
		return nil
	}
	ans, _ := a.deps.Web.Search(ctx, fmt.Sprintf("best hotels in %s for %s travellers", req.Destination, req.TravelStyle), 5)
	if ans == nil {
		return nil
	}
	nightly := 2500.0
	switch req.TravelStyle {
	case "backpacker":
		nightly = 1000
	case "luxury":
		nightly = 9000
	}
	var hotels []state.HotelOption
	for _, r := range ans.Results {
		if r.Title == "" {
			continue
		}
		hotels = append(hotels, state.HotelOption{
			ID:               "web-" + strings.ToLower(strings.ReplaceAll(r.Title, " ", "-")),
			Name:             r.Title,
			Stars:            3,
			PricePerNightINR: nightly,
			TotalPriceINR:    nightly * float64(req.Nights()),
			BookingURL:       r.URL,
			Source:           state.SourceTavilyWeb,
			Verified:         false,
		})
		if len(hotels) == 5 {
			break
		}
	}
	return hotels
}

func (a *Agents) hotelsFromLLM(ctx context.Context, req *state.TripRequest) []state.HotelOption {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil
	}
	res, err := a.deps.LLM.Complete(ctx,
		`List 5 real hotels for the destination as JSON:
{"hotels": [{"name": "", "stars": 0, "price_per_night_inr": 0, "address": ""}]}`,
		fmt.Sprintf("destination: %s, style: %s, budget: ₹%.0f total", req.Destination, req.TravelStyle, req.BudgetINR), true)
	if err != nil {
		return nil
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil
	}
	var out struct {
		Hotels []struct {
			Name             string  `json:"name"`
			Stars            float64 `json:"stars"`
			PricePerNightINR float64 `json:"price_per_night_inr"`
			Address          string  `json:"address"`
		} `json:"hotels"`
	}
	if json.Unmarshal(doc, &out) != nil {
		return nil
	}
	var hotels []state.HotelOption
	for _, h := range out.Hotels {
		if h.Name == "" {
			continue
		}
		hotels = append(hotels, state.HotelOption{
			ID:               "llm-" + strings.ToLower(strings.ReplaceAll(h.Name, " ", "-")),
			Name:             h.Name,
			Address:          h.Address,
			Stars:            h.Stars,
			PricePerNightINR: h.PricePerNightINR,
			TotalPriceINR:    h.PricePerNightINR * float64(req.Nights()),
			Source:           state.SourceLLM,
			Verified:         false,
		})
	}
	return hotels
}

// ActivitySearch tries the places API, then web search, then LLM generation.
func (a *Agents) ActivitySearch(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		upd.Errors = []string{NodeActivitySearch + ": no destination to search"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeActivitySearch, "search_activities", "no destination", "skipped", 0, started),
		}
		return upd, nil
	}
	req := st.TripRequest

	var acts []state.ActivityOption
	var chain []string
	if a.deps.Places != nil && a.deps.Places.Configured() {
		var reason string
		acts, reason = a.deps.Places.SearchActivities(ctx, req.Destination, req.Interests)
		if reason != "" {
			chain = append(chain, "api: "+reason)
		}
	} else {
		chain = append(chain, "api: unconfigured")
	}
	if len(acts) == 0 {
		acts = a.activitiesFromWeb(ctx, req)
		if len(acts) == 0 {
			chain = append(chain, "web: no results")
		}
	}
	if len(acts) == 0 {
		acts = a.activitiesFromLLM(ctx, req)
		if len(acts) == 0 {
			chain = append(chain, "llm: no generation")
		}
	}

	upd.ActivityOptions = acts
	if len(acts) == 0 {
		upd.Errors = []string{NodeActivitySearch + ": " + strings.Join(chain, "; ")}
	}
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeActivitySearch, "search_activities", strings.Join(chain, "; "),
			fmt.Sprintf("%d activities", len(acts)), 0, started),
	}
	return upd, nil
}

func (a *Agents) activitiesFromWeb(ctx context.Context, req *state.TripRequest) []state.ActivityOption {
	if a.deps.Web == nil || !a.deps.Web.Configured() {
		return nil
	}
	ans, _ := a.deps.Web.Search(ctx, fmt.Sprintf("top things to do in %s", req.Destination), 5)
	if ans == nil {
		return nil
	}
	var acts []state.ActivityOption
	for _, r := range ans.Results {
		if r.Title == "" {
			continue
		}
		acts = append(acts, state.ActivityOption{
			ID:            "web-" + strings.ToLower(strings.ReplaceAll(r.Title, " ", "-")),
			Name:          r.Title,
			Category:      "attraction",
			DurationHours: 2,
			Rating:        3.5,
			BookingURL:    r.URL,
			Source:        state.SourceTavilyWeb,
			Verified:      false,
		})
		if len(acts) == 6 {
			break
		}
	}
	return acts
}

func (a *Agents) activitiesFromLLM(ctx context.Context, req *state.TripRequest) []state.ActivityOption {
	if a.deps.LLM == nil || !a.deps.LLM.Configured() {
		return nil
	}
	res, err := a.deps.LLM.Complete(ctx,
		`List 8 activities for the destination as JSON:
{"activities": [{"name": "", "category": "", "duration_hours": 0, "price_inr": 0}]}`,
		fmt.Sprintf("destination: %s, interests: %s", req.Destination, strings.Join(req.Interests, ", ")), true)
	if err != nil {
		return nil
	}
	doc := llm.ExtractJSON(res.Content)
	if doc == nil {
		return nil
	}
	var out struct {
		Activities []struct {
			Name          string  `json:"name"`
			Category      string  `json:"category"`
			DurationHours float64 `json:"duration_hours"`
			PriceINR      float64 `json:"price_inr"`
		} `json:"activities"`
	}
	if json.Unmarshal(doc, &out) != nil {
		return nil
	}
	var acts []state.ActivityOption
	for _, x := range out.Activities {
		if x.Name == "" {
			continue
		}
		acts = append(acts, state.ActivityOption{
			ID:            "llm-" + strings.ToLower(strings.ReplaceAll(x.Name, " ", "-")),
			Name:          x.Name,
			Category:      x.Category,
			DurationHours: x.DurationHours,
			PriceINR:      x.PriceINR,
			Rating:        3.5,
			Source:        state.SourceLLM,
			Verified:      false,
		})
	}
	return acts
}

// WeatherCheck fetches the daily forecast for the trip window.
func (a *Agents) WeatherCheck(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()
	upd := &state.Update{}
	if st.TripRequest == nil || st.TripRequest.Destination == "" {
		upd.Errors = []string{NodeWeatherCheck + ": no destination to check"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeWeatherCheck, "check_weather", "no destination", "skipped", 0, started),
		}
		return upd, nil
	}
	req := st.TripRequest

	p, err := a.resolvePlace(ctx, req.Destination)
	if err != nil {
		upd.Errors = []string{failing(NodeWeatherCheck, err)}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeWeatherCheck, "check_weather", "geocoding failed", "skipped", 0, started),
		}
		return upd, nil
	}
	if a.deps.Weather == nil {
		upd.Errors = []string{NodeWeatherCheck + ": weather adapter unavailable"}
		upd.AgentDecisions = []state.AgentDecision{
			decision(NodeWeatherCheck, "check_weather", "adapter unavailable", "skipped", 0, started),
		}
		return upd, nil
	}
	summary, reason := a.deps.Weather.Forecast(ctx, req.Destination, p.Lat, p.Lon, req.StartDate, req.EndDate)
	if summary == nil {
		upd.Errors = []string{NodeWeatherCheck + ": " + reason}
	} else {
		upd.Weather = summary
	}
	upd.AgentDecisions = []state.AgentDecision{
		decision(NodeWeatherCheck, "check_weather", reason,
			fmt.Sprintf("%d forecast days", forecastDays(summary)), 0, started),
	}
	return upd, nil
}

func forecastDays(s *state.WeatherSummary) int {
	if s == nil {
		return 0
	}
	return len(s.Days)
}

// SearchAggregator is the barrier join after the research fan-out. Empty
// categories are tolerated; downstream nodes fall back to demo pools and
// LLM generation.
func (a *Agents) SearchAggregator(ctx context.Context, st *state.PlannerState) (*state.Update, error) {
	started := time.Now()

	var empty []string
	if len(st.FlightOptions) == 0 && len(st.GroundTransportOptions) == 0 {
		empty = append(empty, "transport")
	}
	if len(st.HotelOptions) == 0 {
		empty = append(empty, "hotels")
	}
	if len(st.ActivityOptions) == 0 {
		empty = append(empty, "activities")
	}
	if st.Weather == nil {
		empty = append(empty, "weather")
	}

	reasoning := "all research categories populated"
	if len(empty) > 0 {
		reasoning = "empty categories: " + strings.Join(empty, ", ")
	}
	return &state.Update{
		CurrentStage: state.StagePtr(state.StageSearchComplete),
		ActiveAgents: []string{NodeSearchAggregator},
		AgentDecisions: []state.AgentDecision{
			decision(NodeSearchAggregator, "aggregate_research", reasoning,
				fmt.Sprintf("%d flights, %d ground, %d hotels, %d activities",
					len(st.FlightOptions), len(st.GroundTransportOptions),
					len(st.HotelOptions), len(st.ActivityOptions)), 0, started),
		},
	}, nil
}
