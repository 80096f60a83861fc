// Package negotiator turns raw candidate lists into exactly three costed,
// scored, and feasibility-checked plan bundles: a budget saver, a best value,
// and an experience maximizer.
package negotiator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

const (
	foodPerDayINR   = 800
	bufferFraction  = 0.05
	topK            = 6
	topActivities   = 12
	interestBonus   = 2.0
	labelSaver      = "budget_saver"
	labelBestValue  = "best_value"
	labelExperience = "experience_max"
)

var subsetSizes = []int{3, 5, 7}

// Inputs carries everything one negotiation needs. The candidate lists are
// read-only; empty lists fall back to the demo pools.
type Inputs struct {
	Transports  []state.TransportOption
	Stays       []state.HotelOption
	Activities  []state.ActivityOption
	BudgetINR   float64
	WhatIfDelta float64
	Days        int
	Travelers   int
	Interests   []string
	Destination string
	Start       time.Time
	End         time.Time
}

func (in *Inputs) effectiveBudget() float64 { return in.BudgetINR + in.WhatIfDelta }

// Result is one negotiation outcome.
type Result struct {
	Bundles           []state.BundleChoice
	CacheKey          string
	Log               []string
	FeasibilityIssues []string
}

// Negotiator owns the deterministic bundle construction. The logger is the
// only dependency; scoring never calls out.
type Negotiator struct {
	logger *zap.Logger
}

// New builds a negotiator.
func New(logger *zap.Logger) *Negotiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Negotiator{logger: logger.Named("negotiator")}
}

// CacheKey fingerprints one negotiation. Interests and traveler count join
// the key because both shift scoring, not just the candidate lists.
func CacheKey(in Inputs) string {
	interests := append([]string(nil), in.Interests...)
	for i := range interests {
		interests[i] = strings.ToLower(interests[i])
	}
	sort.Strings(interests)

	h := md5.New()
	fmt.Fprintf(h, "%.2f|%s|%s|%s|%d|%d|%d|%.2f|%d|%s",
		in.BudgetINR, in.Destination,
		in.Start.Format("2006-01-02"), in.End.Format("2006-01-02"),
		len(in.Transports), len(in.Stays), len(in.Activities),
		in.WhatIfDelta, in.Travelers, strings.Join(interests, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// Negotiate produces the three bundles. It is deterministic for a given
// input set.
func (n *Negotiator) Negotiate(in Inputs) *Result {
	if in.Days < 1 {
		in.Days = 1
	}
	if in.Travelers < 1 {
		in.Travelers = 1
	}

	res := &Result{CacheKey: CacheKey(in)}

	transports := normalizeTransports(in.Transports)
	stays := normalizeStays(in.Stays)
	activities := normalizeActivities(in.Activities)

	if len(transports) == 0 {
		transports = demoTransports(in.Destination)
		res.Log = append(res.Log, "no live transport candidates; using demo pool")
	}
	if len(stays) == 0 {
		stays = demoStays(in.Destination)
		res.Log = append(res.Log, "no live stay candidates; using demo pool")
	}
	if len(activities) == 0 {
		activities = demoActivities(in.Destination)
		res.Log = append(res.Log, "no live activity candidates; using demo pool")
	}

	transports = preselectTransports(transports)
	stays = preselectStays(stays)
	activities = preselectActivities(activities, in.Interests)

	combos := n.enumerate(transports, stays, activities, in)
	if len(combos) == 0 {
		res.Log = append(res.Log, "no viable combinations")
		return res
	}

	winners := pickWinners(combos, in.effectiveBudget())
	for _, w := range winners {
		bundle := w.combo.toBundle(w.label, combos)
		issues := validateFeasibility(&bundle, in.Days)
		res.FeasibilityIssues = append(res.FeasibilityIssues, issues...)
		res.Log = append(res.Log, bundle.DecisionLog...)
		res.Bundles = append(res.Bundles, bundle)
	}

	n.logger.Info("negotiation complete",
		zap.Int("combos", len(combos)),
		zap.Int("bundles", len(res.Bundles)),
		zap.Float64("budget", in.effectiveBudget()))
	return res
}

// enumerate builds every (transport, stay, subset-size) combination.
func (n *Negotiator) enumerate(transports []state.TransportOption, stays []state.HotelOption, activities []state.ActivityOption, in Inputs) []combo {
	var combos []combo
	for _, t := range transports {
		for _, s := range stays {
			for _, size := range subsetSizes {
				acts := activities
				if len(acts) > size {
					acts = acts[:size]
				}
				combos = append(combos, score(t, s, acts, in))
			}
		}
	}
	return combos
}

type winner struct {
	label string
	combo combo
}

// pickWinners applies the three selection rules, keeping the bundles
// pairwise distinct in (transport id, stay id, activity count).
func pickWinners(combos []combo, budget float64) []winner {
	byTotal := sortedBy(combos, func(a, b combo) bool { return a.breakdown.TotalINR < b.breakdown.TotalINR })

	inBudget := filter(combos, func(c combo) bool { return c.breakdown.TotalINR <= budget })
	bestValuePool := sortedBy(inBudget, func(a, b combo) bool { return a.finalScore > b.finalScore })
	if len(bestValuePool) == 0 {
		bestValuePool = sortedBy(combos, func(a, b combo) bool { return a.finalScore > b.finalScore })
	}

	nearBudget := filter(combos, func(c combo) bool { return c.breakdown.TotalINR <= 1.10*budget })
	expPool := sortedBy(nearBudget, func(a, b combo) bool { return a.experienceScore > b.experienceScore })
	if len(expPool) == 0 {
		expPool = sortedBy(combos, func(a, b combo) bool { return a.experienceScore > b.experienceScore })
	}

	var winners []winner
	taken := map[string]bool{}
	for _, bucket := range []struct {
		label string
		pool  []combo
	}{
		{labelSaver, byTotal},
		{labelBestValue, bestValuePool},
		{labelExperience, expPool},
	} {
		for _, c := range bucket.pool {
			if !taken[c.identity()] {
				taken[c.identity()] = true
				winners = append(winners, winner{bucket.label, c})
				break
			}
		}
	}
	return winners
}

func filter(combos []combo, keep func(combo) bool) []combo {
	var out []combo
	for _, c := range combos {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortedBy(combos []combo, less func(a, b combo) bool) []combo {
	out := append([]combo(nil), combos...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
