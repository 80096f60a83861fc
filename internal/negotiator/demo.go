package negotiator

import (
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Demo pools back up the negotiator when a research branch came home empty.
// Every record is tagged estimated and unverified so the itinerary builder
// and validator treat it as provisional.

func demoTransports(destination string) []state.TransportOption {
	tmpl := []state.TransportOption{
		{Mode: state.ModeFlight, Operator: "IndiGo 6E 204", PriceINR: 4800, DurationMinutes: 135, Transfers: 0, Rating: 4.1},
		{Mode: state.ModeFlight, Operator: "Air India AI 440", PriceINR: 6200, DurationMinutes: 125, Transfers: 0, Rating: 3.9},
		{Mode: state.ModeTrain, Operator: "12951 Rajdhani Express", PriceINR: 2100, DurationMinutes: 960, Transfers: 0, TravelClass: "3A", Rating: 4.2},
		{Mode: state.ModeBus, Operator: "Volvo AC Sleeper", PriceINR: 1400, DurationMinutes: 840, Transfers: 0, Rating: 3.8},
	}
	for i := range tmpl {
		tmpl[i].Destination = destination
		tmpl[i].Currency = "INR"
		tmpl[i].Source = state.SourceEstimated
		tmpl[i].ID = fallbackID("demo-transport", tmpl[i].Operator, destination)
	}
	return tmpl
}

func demoStays(destination string) []state.HotelOption {
	tmpl := []state.HotelOption{
		{Name: "Comfort Residency", Stars: 3, PricePerNightINR: 2800, Amenities: []string{"wifi", "breakfast"}},
		{Name: "Heritage Palace Hotel", Stars: 4, PricePerNightINR: 5500, Amenities: []string{"wifi", "pool", "breakfast"}},
		{Name: "Backpacker Hostel Central", Stars: 2, PricePerNightINR: 900, Amenities: []string{"wifi"}},
		{Name: "Grand Luxe Resort", Stars: 5, PricePerNightINR: 12500, Amenities: []string{"wifi", "pool", "spa"}},
	}
	for i := range tmpl {
		tmpl[i].Address = destination
		tmpl[i].Source = state.SourceEstimated
		tmpl[i].ID = fallbackID("demo-stay", tmpl[i].Name, destination)
	}
	return tmpl
}

func demoActivities(destination string) []state.ActivityOption {
	tmpl := []state.ActivityOption{
		{Name: "Old City Walking Tour", Category: "culture", DurationHours: 3, PriceINR: 500, Rating: 4.4},
		{Name: "Local Food Trail", Category: "food", DurationHours: 2.5, PriceINR: 800, Rating: 4.6},
		{Name: "Sunset Viewpoint", Category: "nature", DurationHours: 1.5, PriceINR: 0, Rating: 4.3},
		{Name: "Main Fort and Museum", Category: "history", DurationHours: 3, PriceINR: 600, Rating: 4.5},
		{Name: "Bazaar Shopping Stroll", Category: "shopping", DurationHours: 2, PriceINR: 0, Rating: 4.0},
		{Name: "River Boat Ride", Category: "adventure", DurationHours: 2, PriceINR: 1200, Rating: 4.2},
		{Name: "Morning Yoga Session", Category: "wellness", DurationHours: 1.5, PriceINR: 400, Rating: 4.1},
		{Name: "Craft Workshop", Category: "culture", DurationHours: 2, PriceINR: 700, Rating: 3.9},
	}
	for i := range tmpl {
		tmpl[i].Source = state.SourceEstimated
		tmpl[i].ID = fallbackID("demo-activity", tmpl[i].Name, destination)
	}
	return tmpl
}
