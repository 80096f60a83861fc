package providers

import (
	"fmt"
	"math"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Ground transport fares are computed, not fetched. Indian Railways and
// state-bus tariffs are stable enough that deterministic formulas beat a
// flaky scrape, and they are always available offline.

// routeFactor converts great-circle distance to road/rail distance.
const routeFactor = 1.3

// trainClass holds the per-km rate and whether the class is air conditioned
// (AC classes attract 5% GST on the fare total).
type trainClass struct {
	label     string
	ratePerKM float64
	ac        bool
}

var trainClasses = []trainClass{
	{"SL", 0.40, false},
	{"3A", 0.85, true},
	{"2A", 1.20, true},
	{"1A", 2.00, true},
}

const (
	trainReservationINR = 40
	trainSuperfastINR   = 45
	trainAvgSpeedKPH    = 55
)

// Named trains keyed to the 5-digit number convention. Operators carry the
// number first so the mode is recognizable at a glance.
var trainNames = []string{
	"12951 Rajdhani Express",
	"12301 Howrah Rajdhani",
	"12009 Shatabdi Express",
	"12621 Tamil Nadu Express",
	"12137 Punjab Mail",
}

type busTier struct {
	operator  string
	ratePerKM float64
	speedKPH  float64
	rating    float64
}

var busTiers = []busTier{
	{"State Transport Ordinary", 1.10, 40, 3.2},
	{"Private AC Seater", 1.80, 50, 3.7},
	{"Volvo AC Sleeper", 2.50, 55, 4.1},
}

type cabTier struct {
	operator   string
	baseINR    float64
	ratePerKM  float64
	ratePerMin float64
	rating     float64
}

var cabTiers = []cabTier{
	{"Ola Mini", 55, 12.0, 1.5, 4.0},
	{"Ola Prime Sedan", 80, 15.0, 2.0, 4.2},
	{"Uber Go", 50, 11.5, 1.5, 4.1},
	{"Uber Premier", 85, 15.5, 2.0, 4.3},
}

// outstation rates replace city metering beyond 80 km: flat per-km with a
// driver allowance, the usual intercity cab arrangement.
const (
	outstationThresholdKM  = 80
	outstationRatePerKM    = 14.0
	outstationAllowanceINR = 300
	cabAvgSpeedKPH         = 50
)

// TrainFareINR computes the fare for one passenger over the given
// great-circle distance. AC classes add 5% GST, rounded up.
func TrainFareINR(distanceKM float64, class string) float64 {
	rate := 0.85
	ac := true
	for _, tc := range trainClasses {
		if tc.label == class {
			rate, ac = tc.ratePerKM, tc.ac
			break
		}
	}
	fare := distanceKM*routeFactor*rate + trainReservationINR + trainSuperfastINR
	if ac {
		fare *= 1.05
	}
	return math.Ceil(fare)
}

// TrainDurationMinutes estimates journey time from the rail distance.
func TrainDurationMinutes(distanceKM float64) int {
	return int(math.Ceil(distanceKM * routeFactor / trainAvgSpeedKPH * 60))
}

// GroundTransportOptions returns train, bus, and cab candidates for a leg.
// Trains and buses are skipped for very short hops where a cab is the only
// sensible choice.
func GroundTransportOptions(origin, destination string, distanceKM float64, travelers int) []state.TransportOption {
	if travelers < 1 {
		travelers = 1
	}
	var out []state.TransportOption

	if distanceKM >= 40 {
		for i, tc := range trainClasses {
			fare := TrainFareINR(distanceKM, tc.label)
			opt := state.TransportOption{
				Mode:            state.ModeTrain,
				Operator:        trainNames[i%len(trainNames)],
				Origin:          origin,
				Destination:     destination,
				PriceINR:        fare * float64(travelers),
				Currency:        "INR",
				DurationMinutes: TrainDurationMinutes(distanceKM),
				TravelClass:     tc.label,
				Rating:          4.0,
				Source:          state.SourceFareCalculator,
				Verified:        false,
			}
			opt.ID = stableID("train", opt.Operator, tc.label, origin, destination)
			out = append(out, opt)
		}
		for _, bt := range busTiers {
			road := distanceKM * routeFactor
			opt := state.TransportOption{
				Mode:            state.ModeBus,
				Operator:        bt.operator,
				Origin:          origin,
				Destination:     destination,
				PriceINR:        math.Ceil(road*bt.ratePerKM) * float64(travelers),
				Currency:        "INR",
				DurationMinutes: int(math.Ceil(road / bt.speedKPH * 60)),
				Rating:          bt.rating,
				Source:          state.SourceFareCalculator,
				Verified:        false,
			}
			opt.ID = stableID("bus", opt.Operator, origin, destination)
			out = append(out, opt)
		}
	}

	for _, ct := range cabTiers {
		out = append(out, cabOption(ct, origin, destination, distanceKM))
	}
	return out
}

// cabOption prices one ride-hailing tier. A cab carries the whole party, so
// the fare is per vehicle, not per traveler.
func cabOption(ct cabTier, origin, destination string, distanceKM float64) state.TransportOption {
	road := distanceKM * routeFactor
	minutes := math.Ceil(road / cabAvgSpeedKPH * 60)

	var fare float64
	if road > outstationThresholdKM {
		fare = road*outstationRatePerKM + outstationAllowanceINR
	} else {
		fare = ct.baseINR + road*ct.ratePerKM + minutes*ct.ratePerMin
	}

	opt := state.TransportOption{
		Mode:            state.ModeCab,
		Operator:        ct.operator,
		Origin:          origin,
		Destination:     destination,
		PriceINR:        math.Ceil(fare),
		Currency:        "INR",
		DurationMinutes: int(minutes),
		Rating:          ct.rating,
		Source:          state.SourceFareCalculator,
		Verified:        false,
	}
	opt.ID = stableID("cab", ct.operator, origin, destination, fmt.Sprintf("%.0f", distanceKM))
	return opt
}
