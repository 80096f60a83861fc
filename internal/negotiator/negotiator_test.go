package negotiator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

func sampleInputs() Inputs {
	transports := []state.TransportOption{
		{ID: "t-cheap", Mode: state.ModeBus, Operator: "Volvo AC Sleeper", PriceINR: 1200, DurationMinutes: 700, Rating: 3.6},
		{ID: "t-train", Mode: state.ModeTrain, Operator: "12951 Rajdhani Express", PriceINR: 2300, DurationMinutes: 620, Rating: 4.2, TravelClass: "3A"},
		{ID: "t-fast", Mode: state.ModeFlight, Operator: "IndiGo 6E 204", PriceINR: 5200, DurationMinutes: 140, Rating: 4.1, BookingURL: "https://example.com/f"},
		{ID: "t-prem", Mode: state.ModeFlight, Operator: "Vistara UK 995", PriceINR: 8900, DurationMinutes: 130, Rating: 4.6},
	}
	stays := []state.HotelOption{
		{ID: "h-hostel", Name: "Backpacker Hostel", Stars: 2, PricePerNightINR: 800},
		{ID: "h-mid", Name: "Comfort Residency", Stars: 3, PricePerNightINR: 2600, BookingURL: "https://example.com/h"},
		{ID: "h-lux", Name: "Grand Luxe Resort", Stars: 5, PricePerNightINR: 11000},
	}
	var acts []state.ActivityOption
	for i := 0; i < 10; i++ {
		acts = append(acts, state.ActivityOption{
			ID:            fmt.Sprintf("a-%d", i),
			Name:          fmt.Sprintf("Activity %d", i),
			Category:      []string{"adventure", "culture", "food", "nature"}[i%4],
			DurationHours: 2,
			PriceINR:      float64(200 + 100*i),
			Rating:        3.5 + float64(i%4)*0.3,
		})
	}
	return Inputs{
		Transports:  transports,
		Stays:       stays,
		Activities:  acts,
		BudgetINR:   30000,
		Days:        4,
		Travelers:   2,
		Interests:   []string{"adventure"},
		Destination: "Rishikesh",
		Start:       time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
	}
}

func TestNegotiateThreeBundles(t *testing.T) {
	res := New(nil).Negotiate(sampleInputs())
	require.Len(t, res.Bundles, 3)

	byID := map[string]state.BundleChoice{}
	for _, b := range res.Bundles {
		byID[b.ID] = b
	}
	require.Contains(t, byID, "budget_saver")
	require.Contains(t, byID, "best_value")
	require.Contains(t, byID, "experience_max")

	assert.LessOrEqual(t, byID["budget_saver"].Breakdown.TotalINR, byID["best_value"].Breakdown.TotalINR)
	assert.GreaterOrEqual(t, byID["experience_max"].ExperienceScore, byID["best_value"].ExperienceScore)
}

func TestBundlesPairwiseDistinct(t *testing.T) {
	res := New(nil).Negotiate(sampleInputs())
	require.Len(t, res.Bundles, 3)

	seen := map[string]bool{}
	for _, b := range res.Bundles {
		key := fmt.Sprintf("%s|%s|%d", b.Transport.ID, b.Stay.ID, len(b.Activities))
		assert.False(t, seen[key], "bundle %s duplicates triple %s", b.ID, key)
		seen[key] = true
	}
}

func TestCostBreakdownArithmetic(t *testing.T) {
	in := sampleInputs()
	res := New(nil).Negotiate(in)
	for _, b := range res.Bundles {
		bd := b.Breakdown
		subtotal := bd.TransportINR + bd.StayINR + bd.ActivitiesINR + bd.FoodINR
		assert.InDelta(t, subtotal*0.05, bd.BufferINR, 0.5, "buffer is 5%% of subtotal")
		assert.InDelta(t, subtotal+bd.BufferINR, bd.TotalINR, 0.5)
		assert.InDelta(t, 800*float64(in.Days)*float64(in.Travelers), bd.FoodINR, 0.01)
	}
}

func TestStayCostChargedPerTripDay(t *testing.T) {
	stay := state.HotelOption{
		ID: "h-1", Name: "Comfort Residency",
		PricePerNightINR: 1000,
		TotalPriceINR:    3000, // provider quote for a shorter window, ignored
	}
	c := score(state.TransportOption{ID: "t-1", PriceINR: 2000}, stay, nil,
		Inputs{Days: 4, Travelers: 1, BudgetINR: 30000})
	assert.Equal(t, 4000.0, c.breakdown.StayINR)
}

func TestScoresWithinRange(t *testing.T) {
	res := New(nil).Negotiate(sampleInputs())
	for _, b := range res.Bundles {
		for name, v := range map[string]float64{
			"cost": b.CostScore, "experience": b.ExperienceScore,
			"convenience": b.ConvenienceScore, "final": b.FinalScore,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 100.0, name)
		}
	}
}

func TestRationaleAttached(t *testing.T) {
	res := New(nil).Negotiate(sampleInputs())
	for _, b := range res.Bundles {
		assert.GreaterOrEqual(t, len(b.TradeOffs), 3, "bundle %s", b.ID)
		assert.LessOrEqual(t, len(b.TradeOffs), 5, "bundle %s", b.ID)
		assert.NotEmpty(t, b.Rejected)
		assert.Len(t, b.DecisionLog, 6)
	}
}

func TestCostScorePiecewise(t *testing.T) {
	assert.Equal(t, 100.0, costScore(7000, 10000))
	assert.InDelta(t, 90.0, costScore(7750, 10000), 0.01) // r=0.775, midway 100->80
	assert.InDelta(t, 60.0, costScore(9250, 10000), 0.01) // r=0.925, midway 80->40
	assert.InDelta(t, 30.0, costScore(11000, 10000), 0.01) // r=1.1, over=0.25, 40-10
	assert.Equal(t, 0.0, costScore(25000, 10000))
}

func TestDemoPoolsFillEmptyCategories(t *testing.T) {
	in := sampleInputs()
	in.Transports = nil
	in.Stays = nil
	in.Activities = nil

	res := New(nil).Negotiate(in)
	require.Len(t, res.Bundles, 3)
	for _, b := range res.Bundles {
		assert.Equal(t, state.SourceEstimated, b.Transport.Source)
		assert.Equal(t, state.SourceEstimated, b.Stay.Source)
	}
	assert.Contains(t, res.Log[0], "demo pool")
}

func TestCacheKeySensitivity(t *testing.T) {
	base := sampleInputs()
	assert.Equal(t, CacheKey(base), CacheKey(base), "deterministic")

	delta := base
	delta.WhatIfDelta = 5000
	assert.NotEqual(t, CacheKey(base), CacheKey(delta), "what-if delta changes the key")

	interests := base
	interests.Interests = []string{"food"}
	assert.NotEqual(t, CacheKey(base), CacheKey(interests), "interests change the key")

	travelers := base
	travelers.Travelers = 4
	assert.NotEqual(t, CacheKey(base), CacheKey(travelers), "traveler count changes the key")

	reordered := base
	reordered.Interests = []string{"ADVENTURE"}
	assert.Equal(t, CacheKey(base), CacheKey(reordered), "interest casing is normalized")
}

func TestWhatIfLoosensBudget(t *testing.T) {
	in := sampleInputs()
	in.BudgetINR = 10000

	tight := New(nil).Negotiate(in)
	in.WhatIfDelta = 5000
	loose := New(nil).Negotiate(in)

	require.Len(t, loose.Bundles, 3)
	assert.NotEqual(t, tight.CacheKey, loose.CacheKey)

	var bestValue state.BundleChoice
	for _, b := range loose.Bundles {
		if b.ID == "best_value" {
			bestValue = b
		}
	}
	assert.LessOrEqual(t, bestValue.Breakdown.TotalINR/15000, 1.10)
}

func TestInterestBonusShiftsActivitySelection(t *testing.T) {
	acts := []state.ActivityOption{
		{ID: "a-top", Name: "High Rated Museum", Category: "culture", Rating: 4.9, DurationHours: 2},
		{ID: "a-raft", Name: "River Rafting", Category: "adventure", Rating: 3.6, DurationHours: 3},
	}
	picked := preselectActivities(acts, []string{"Adventure"})
	require.Len(t, picked, 2)
	// 3.6 + 2.0 bonus beats 4.9.
	assert.Equal(t, "a-raft", picked[0].ID)
}

func TestFeasibilityRepairOverpackedDay(t *testing.T) {
	b := state.BundleChoice{
		Label: "best_value",
		Activities: []state.ActivityOption{
			{Name: "A", DurationHours: 6}, {Name: "B", DurationHours: 6},
			{Name: "C", DurationHours: 6}, {Name: "D", DurationHours: 8},
		},
	}
	issues := validateFeasibility(&b, 2) // 13 h/day
	require.NotEmpty(t, issues)
	assert.Len(t, b.Activities, 3, "longest activity dropped")
	for _, a := range b.Activities {
		assert.NotEqual(t, "D", a.Name)
	}
}

func TestFeasibilityRepairIdempotent(t *testing.T) {
	b := state.BundleChoice{
		Label: "best_value",
		Activities: []state.ActivityOption{
			{Name: "A", DurationHours: 2}, {Name: "B", DurationHours: 2}, {Name: "C", DurationHours: 2},
		},
	}
	first := validateFeasibility(&b, 3)
	assert.Empty(t, first)
	after := append([]state.ActivityOption(nil), b.Activities...)
	second := validateFeasibility(&b, 3)
	assert.Empty(t, second)
	assert.Equal(t, after, b.Activities)
}

func TestFeasibilityRepairConvergesOnOverpackedBundle(t *testing.T) {
	b := state.BundleChoice{Label: "experience_max"}
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		b.Activities = append(b.Activities, state.ActivityOption{Name: n, DurationHours: 4})
	}

	// 28 h over 2 days; one pass must keep dropping until the day fits.
	first := validateFeasibility(&b, 2)
	require.NotEmpty(t, first)
	assert.Len(t, b.Activities, 5, "10 h/day reached in a single pass")
	after := append([]state.ActivityOption(nil), b.Activities...)

	second := validateFeasibility(&b, 2)
	assert.Empty(t, second)
	assert.Equal(t, after, b.Activities)
}

func TestFeasibilityRepairStopsAtFloor(t *testing.T) {
	b := state.BundleChoice{
		Label:      "experience_max",
		Activities: []state.ActivityOption{{Name: "Everest Trek", DurationHours: 20}},
	}
	// A single 20 h activity breaks both rules but sits at the drop floor;
	// the bundle is kept with its issues and never emptied.
	issues := validateFeasibility(&b, 1)
	require.Len(t, issues, 2)
	require.Len(t, b.Activities, 1)
}

func TestFeasibilityFlagsLongTransportWithoutRepair(t *testing.T) {
	b := state.BundleChoice{
		Label:     "budget_saver",
		Transport: state.TransportOption{DurationMinutes: 26 * 60},
		Activities: []state.ActivityOption{
			{Name: "A", DurationHours: 2}, {Name: "B", DurationHours: 2},
		},
	}
	issues := validateFeasibility(&b, 3)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "transport")
	assert.Len(t, b.Activities, 2)
}

func TestNegotiateDeterministic(t *testing.T) {
	in := sampleInputs()
	a := New(nil).Negotiate(in)
	b := New(nil).Negotiate(in)
	require.Len(t, b.Bundles, 3)
	assert.Equal(t, a.CacheKey, b.CacheKey)
	for i := range a.Bundles {
		assert.Equal(t, a.Bundles[i].ID, b.Bundles[i].ID)
		assert.Equal(t, a.Bundles[i].Breakdown, b.Bundles[i].Breakdown)
	}
}
