package negotiator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// combo is one scored (transport, stay, activity-subset) candidate.
type combo struct {
	transport        state.TransportOption
	stay             state.HotelOption
	activities       []state.ActivityOption
	breakdown        state.CostBreakdown
	costScore        float64
	experienceScore  float64
	convenienceScore float64
	finalScore       float64
	dailyHours       float64
	interests        []string
}

// identity is the distinctness triple for winner dedup.
func (c combo) identity() string {
	return fmt.Sprintf("%s|%s|%d", c.transport.ID, c.stay.ID, len(c.activities))
}

func fallbackID(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:10]
}

// normalize fills defaults so scoring never special-cases missing fields.

func normalizeTransports(in []state.TransportOption) []state.TransportOption {
	out := make([]state.TransportOption, 0, len(in))
	for _, t := range in {
		if t.ID == "" {
			t.ID = fallbackID("transport", t.Operator, fmt.Sprintf("%.0f", t.PriceINR))
		}
		if t.DurationMinutes <= 0 {
			t.DurationMinutes = 120
		}
		if t.Rating <= 0 {
			t.Rating = 3.5
		}
		if t.Transfers < 0 {
			t.Transfers = 0
		}
		out = append(out, t)
	}
	return out
}

func normalizeStays(in []state.HotelOption) []state.HotelOption {
	out := make([]state.HotelOption, 0, len(in))
	for _, s := range in {
		if s.ID == "" {
			s.ID = fallbackID("stay", s.Name, fmt.Sprintf("%.0f", s.PricePerNightINR))
		}
		if s.Stars <= 0 {
			s.Stars = 3
		}
		out = append(out, s)
	}
	return out
}

func normalizeActivities(in []state.ActivityOption) []state.ActivityOption {
	out := make([]state.ActivityOption, 0, len(in))
	for _, a := range in {
		if a.ID == "" {
			a.ID = fallbackID("activity", a.Name, fmt.Sprintf("%.0f", a.PriceINR))
		}
		if a.DurationHours <= 0 {
			a.DurationHours = 2
		}
		if a.Rating <= 0 {
			a.Rating = 3.5
		}
		out = append(out, a)
	}
	return out
}

// preselectTransports unions the cheapest K with the best-rated K.
func preselectTransports(in []state.TransportOption) []state.TransportOption {
	byPrice := append([]state.TransportOption(nil), in...)
	sort.SliceStable(byPrice, func(i, j int) bool { return byPrice[i].PriceINR < byPrice[j].PriceINR })
	byRating := append([]state.TransportOption(nil), in...)
	sort.SliceStable(byRating, func(i, j int) bool { return byRating[i].Rating > byRating[j].Rating })

	seen := map[string]bool{}
	var out []state.TransportOption
	for _, pool := range [][]state.TransportOption{byPrice, byRating} {
		for i := 0; i < len(pool) && i < topK; i++ {
			if !seen[pool[i].ID] {
				seen[pool[i].ID] = true
				out = append(out, pool[i])
			}
		}
	}
	return out
}

func preselectStays(in []state.HotelOption) []state.HotelOption {
	byPrice := append([]state.HotelOption(nil), in...)
	sort.SliceStable(byPrice, func(i, j int) bool { return byPrice[i].PricePerNightINR < byPrice[j].PricePerNightINR })
	byRating := append([]state.HotelOption(nil), in...)
	sort.SliceStable(byRating, func(i, j int) bool { return byRating[i].Stars > byRating[j].Stars })

	seen := map[string]bool{}
	var out []state.HotelOption
	for _, pool := range [][]state.HotelOption{byPrice, byRating} {
		for i := 0; i < len(pool) && i < topK; i++ {
			if !seen[pool[i].ID] {
				seen[pool[i].ID] = true
				out = append(out, pool[i])
			}
		}
	}
	return out
}

// preselectActivities keeps the top activities by interest-boosted rating,
// cheaper first on ties.
func preselectActivities(in []state.ActivityOption, interests []string) []state.ActivityOption {
	wanted := map[string]bool{}
	for _, i := range interests {
		wanted[strings.ToLower(i)] = true
	}
	boost := func(a state.ActivityOption) float64 {
		if wanted[strings.ToLower(a.Category)] {
			return a.Rating + interestBonus
		}
		return a.Rating
	}

	out := append([]state.ActivityOption(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := boost(out[i]), boost(out[j])
		if bi != bj {
			return bi > bj
		}
		return out[i].PriceINR < out[j].PriceINR
	})
	if len(out) > topActivities {
		out = out[:topActivities]
	}
	return out
}

// score builds the cost breakdown and the three component scores for one
// combination.
func score(t state.TransportOption, s state.HotelOption, acts []state.ActivityOption, in Inputs) combo {
	// Stay cost is charged per night for every trip day.
	stayTotal := s.PricePerNightINR * float64(in.Days)
	var actTotal, actHours float64
	for _, a := range acts {
		actTotal += a.PriceINR * float64(in.Travelers)
		actHours += a.DurationHours
	}

	subtotal := t.PriceINR + stayTotal + actTotal + foodPerDayINR*float64(in.Days)*float64(in.Travelers)
	buffer := subtotal * bufferFraction

	c := combo{
		transport:  t,
		stay:       s,
		activities: append([]state.ActivityOption(nil), acts...),
		breakdown: state.CostBreakdown{
			TransportINR:  round2(t.PriceINR),
			StayINR:       round2(stayTotal),
			ActivitiesINR: round2(actTotal),
			FoodINR:       round2(foodPerDayINR * float64(in.Days) * float64(in.Travelers)),
			BufferINR:     round2(buffer),
			TotalINR:      round2(subtotal + buffer),
		},
		dailyHours: actHours / float64(in.Days),
		interests:  in.Interests,
	}

	c.costScore = costScore(c.breakdown.TotalINR, in.effectiveBudget())
	c.experienceScore = experienceScore(c, in.Interests)
	c.convenienceScore = convenienceScore(c)
	c.finalScore = clamp(0.45*c.experienceScore+0.35*c.costScore+0.20*c.convenienceScore, 0, 100)
	return c
}

// costScore is piecewise on the spend ratio r = total / budget.
func costScore(total, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	r := total / budget
	switch {
	case r <= 0.70:
		return 100
	case r <= 0.85:
		return 100 - (r-0.70)/0.15*20
	case r <= 1.00:
		return 80 - (r-0.85)/0.15*40
	default:
		over := (r - 1) * 2.5
		return math.Max(0, 40-over*40)
	}
}

func experienceScore(c combo, interests []string) float64 {
	stayQuality := c.stay.Stars / 5 * 30

	countPts := math.Min(15, float64(len(c.activities))*2)
	var ratingSum float64
	wanted := map[string]bool{}
	for _, i := range interests {
		wanted[strings.ToLower(i)] = true
	}
	matches := 0
	categories := map[string]bool{}
	for _, a := range c.activities {
		ratingSum += a.Rating
		categories[strings.ToLower(a.Category)] = true
		if wanted[strings.ToLower(a.Category)] {
			matches++
		}
	}
	var avgRatingPts float64
	if len(c.activities) > 0 {
		avgRatingPts = ratingSum / float64(len(c.activities)) / 5 * 15
	}
	interestPts := math.Min(10, float64(matches)*3)
	richness := countPts + avgRatingPts + interestPts

	comfortRating := c.transport.Rating / 5 * 12
	penalty := float64(c.transport.Transfers) * 2
	switch {
	case c.transport.DurationMinutes > 8*60:
		penalty += 4
	case c.transport.DurationMinutes > 4*60:
		penalty += 2
	}
	comfort := comfortRating + math.Max(0, 8-penalty)

	variety := math.Min(10, float64(len(categories))*2)

	return clamp(stayQuality+richness+comfort+variety, 0, 100)
}

func convenienceScore(c combo) float64 {
	s := 70.0
	switch {
	case c.transport.DurationMinutes > 8*60:
		s -= 20
	case c.transport.DurationMinutes > 4*60:
		s -= 10
	}
	s -= 8 * float64(c.transport.Transfers)
	switch {
	case c.dailyHours > 10:
		s -= 20
	case c.dailyHours > 7:
		s -= 10
	case c.dailyHours < 4:
		s += 10
	}
	if c.transport.BookingURL != "" {
		s += 8
	}
	if c.stay.BookingURL != "" {
		s += 7
	}
	return clamp(s, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
