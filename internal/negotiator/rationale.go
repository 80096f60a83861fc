package negotiator

import (
	"fmt"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// toBundle attaches the rationale: trade-off lines, rejected alternatives,
// booking URLs, and the decision log. peers is the full combo set, used to
// find the runner-up in each category.
func (c combo) toBundle(label string, peers []combo) state.BundleChoice {
	// The label doubles as the bundle id; callers select bundles by the
	// stable names budget_saver, best_value, experience_max.
	b := state.BundleChoice{
		ID:               label,
		Label:            label,
		Transport:        c.transport,
		Stay:             c.stay,
		Activities:       append([]state.ActivityOption(nil), c.activities...),
		Breakdown:        c.breakdown,
		CostScore:        round2(c.costScore),
		ExperienceScore:  round2(c.experienceScore),
		ConvenienceScore: round2(c.convenienceScore),
		FinalScore:       round2(c.finalScore),
	}

	b.TradeOffs = c.tradeOffs(label, peers)
	b.Rejected = c.rejected(peers)
	b.BookingURLs = c.bookingURLs()
	b.DecisionLog = c.decisionLog(label)
	return b
}

// tradeOffs produces 3 to 5 gain/sacrifice lines by comparing the chosen
// option to the runner-up in its category.
func (c combo) tradeOffs(label string, peers []combo) []state.TradeOff {
	var out []state.TradeOff

	if alt, ok := runnerUpTransport(c, peers); ok {
		if c.transport.PriceINR <= alt.PriceINR {
			out = append(out, state.TradeOff{
				Gain:      fmt.Sprintf("Saves ₹%.0f on transport vs %s", alt.PriceINR-c.transport.PriceINR, alt.Operator),
				Sacrifice: fmt.Sprintf("%s takes %d min vs %d min", c.transport.Operator, c.transport.DurationMinutes, alt.DurationMinutes),
			})
		} else {
			out = append(out, state.TradeOff{
				Gain:      fmt.Sprintf("%s is %d min faster than %s", c.transport.Operator, alt.DurationMinutes-c.transport.DurationMinutes, alt.Operator),
				Sacrifice: fmt.Sprintf("Costs ₹%.0f more than the cheaper option", c.transport.PriceINR-alt.PriceINR),
			})
		}
	}

	if alt, ok := runnerUpStay(c, peers); ok {
		if c.stay.Stars >= alt.Stars {
			out = append(out, state.TradeOff{
				Gain:      fmt.Sprintf("%.0f-star stay at %s", c.stay.Stars, c.stay.Name),
				Sacrifice: fmt.Sprintf("₹%.0f/night more than %s", c.stay.PricePerNightINR-alt.PricePerNightINR, alt.Name),
			})
		} else {
			out = append(out, state.TradeOff{
				Gain:      fmt.Sprintf("Saves ₹%.0f/night vs %s", alt.PricePerNightINR-c.stay.PricePerNightINR, alt.Name),
				Sacrifice: fmt.Sprintf("%s has %.0f stars vs %.0f", c.stay.Name, c.stay.Stars, alt.Stars),
			})
		}
	}

	switch label {
	case labelSaver:
		out = append(out, state.TradeOff{
			Gain:      fmt.Sprintf("Lowest total at ₹%.0f", c.breakdown.TotalINR),
			Sacrifice: fmt.Sprintf("Trims to %d activities", len(c.activities)),
		})
	case labelExperience:
		out = append(out, state.TradeOff{
			Gain:      fmt.Sprintf("Packs %d activities with experience score %.0f", len(c.activities), c.experienceScore),
			Sacrifice: fmt.Sprintf("Busier days, about %.1f activity hours each", c.dailyHours),
		})
	default:
		out = append(out, state.TradeOff{
			Gain:      fmt.Sprintf("Balanced plan scoring %.0f overall", c.finalScore),
			Sacrifice: "Neither the cheapest nor the fullest option",
		})
	}

	if c.dailyHours < 4 {
		out = append(out, state.TradeOff{
			Gain:      "Relaxed pace with free half-days",
			Sacrifice: "Fewer sights covered",
		})
	}
	return out
}

// rejected names up to two close runner-ups with the reason they lost.
func (c combo) rejected(peers []combo) []state.RejectedAlternative {
	var out []state.RejectedAlternative
	if alt, ok := runnerUpTransport(c, peers); ok {
		out = append(out, state.RejectedAlternative{
			Description: fmt.Sprintf("%s (₹%.0f, %d min)", alt.Operator, alt.PriceINR, alt.DurationMinutes),
			Reason:      "worse price-to-comfort balance for this bundle",
		})
	}
	if alt, ok := runnerUpStay(c, peers); ok {
		out = append(out, state.RejectedAlternative{
			Description: fmt.Sprintf("%s (₹%.0f/night, %.0f stars)", alt.Name, alt.PricePerNightINR, alt.Stars),
			Reason:      "scored lower on the stay-quality versus cost trade",
		})
	}
	return out
}

func (c combo) bookingURLs() map[string]string {
	urls := map[string]string{}
	if c.transport.BookingURL != "" {
		urls["transport"] = c.transport.BookingURL
	}
	if c.stay.BookingURL != "" {
		urls["stay"] = c.stay.BookingURL
	}
	for i, a := range c.activities {
		if a.BookingURL != "" {
			urls[fmt.Sprintf("activity_%d", i)] = a.BookingURL
		}
	}
	return urls
}

// decisionLog is the six-line human-readable account of how the bundle won.
func (c combo) decisionLog(label string) []string {
	return []string{
		fmt.Sprintf("[%s] transport: %s (%s) at ₹%.0f", label, c.transport.Operator, c.transport.Mode, c.transport.PriceINR),
		fmt.Sprintf("[%s] stay: %s (%.0f stars) at ₹%.0f total", label, c.stay.Name, c.stay.Stars, c.breakdown.StayINR),
		fmt.Sprintf("[%s] activities: %d chosen totalling ₹%.0f", label, len(c.activities), c.breakdown.ActivitiesINR),
		fmt.Sprintf("[%s] food and buffer: ₹%.0f + ₹%.0f", label, c.breakdown.FoodINR, c.breakdown.BufferINR),
		fmt.Sprintf("[%s] total ₹%.0f", label, c.breakdown.TotalINR),
		fmt.Sprintf("[%s] scores: cost %.0f, experience %.0f, convenience %.0f, final %.0f", label, c.costScore, c.experienceScore, c.convenienceScore, c.finalScore),
	}
}

// runnerUpTransport finds the best-scoring combo using a different transport.
func runnerUpTransport(c combo, peers []combo) (state.TransportOption, bool) {
	best := combo{}
	found := false
	for _, p := range peers {
		if p.transport.ID == c.transport.ID {
			continue
		}
		if !found || p.finalScore > best.finalScore {
			best, found = p, true
		}
	}
	return best.transport, found
}

func runnerUpStay(c combo, peers []combo) (state.HotelOption, bool) {
	best := combo{}
	found := false
	for _, p := range peers {
		if p.stay.ID == c.stay.ID {
			continue
		}
		if !found || p.finalScore > best.finalScore {
			best, found = p, true
		}
	}
	return best.stay, found
}
