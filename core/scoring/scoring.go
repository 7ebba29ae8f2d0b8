// Package scoring ranks vehicles and hospitals for an incident.
package scoring

import (
	"fmt"
	"strings"

	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/model"
)

// Mode selects the hospital ranking formula.
type Mode string

const (
	// ModeAdditive maximises 100 - load - distance plus specialty bonuses.
	ModeAdditive Mode = "additive"
	// ModeWeightedCost minimises a distance and load cost with a heavier
	// distance weight for HIGH priority incidents.
	ModeWeightedCost Mode = "weighted_cost"
)

// ParseMode returns ModeAdditive for an empty string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAdditive, nil
	case ModeAdditive, ModeWeightedCost:
		return m, nil
	default:
		return "", fmt.Errorf("scoring: unknown mode %q", s)
	}
}

// Additive score weights.
const (
	BaseScore      = 100.0
	SpecialtyBonus = 20.0
	TraumaBonus    = 15.0
)

// Weighted cost weights.
const (
	LoadCostDivisor       = 10.0
	HighLoadCostDivisor   = 20.0
	HighDistanceFactor    = 1.5
	SpecialtyCostDiscount = 2.0
)

var defaultCategories = map[string]string{
	"accident":  "trauma",
	"fire":      "burns",
	"cardiac":   "cardiology",
	"heart":     "cardiology",
	"stroke":    "neurology",
	"pregnancy": "gynecology",
	"maternity": "gynecology",
}

// Engine holds the scoring configuration. The zero value scores in
// additive mode with the built-in category table.
type Engine struct {
	Mode Mode
	// Categories extends or overrides the category to specialty table.
	Categories map[string]string
}

// New returns an engine for mode with extra category mappings.
func New(mode Mode, categories map[string]string) Engine {
	return Engine{Mode: mode, Categories: categories}
}

// MapCategory translates a free-text incident category into the specialty
// vocabulary used by hospitals.
func (e Engine) MapCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if s, ok := e.Categories[c]; ok {
		return strings.ToLower(s)
	}
	if s, ok := defaultCategories[c]; ok {
		return s
	}
	return c
}

// VehicleChoice is the result of FindBestVehicle.
type VehicleChoice struct {
	Vehicle    model.Vehicle
	DistanceKm float64
}

// FindBestVehicle returns the closest available vehicle. Candidates are
// evaluated in input order and the first one wins a tie.
func (e Engine) FindBestVehicle(at model.Point, candidates []model.Vehicle) (VehicleChoice, error) {
	var (
		best  VehicleChoice
		found bool
	)
	for _, v := range candidates {
		if v.Status != model.StatusAvailable || !v.Location.Valid() {
			continue
		}
		d := geo.DistanceKm(at, v.Location)
		if !found || d < best.DistanceKm {
			best = VehicleChoice{Vehicle: v, DistanceKm: d}
			found = true
		}
	}
	if !found {
		return VehicleChoice{}, model.Wrap(model.KindNoCapacity, model.ErrNoVehicleAvailable, "scoring")
	}
	return best, nil
}

// HospitalChoice is the result of FindBestHospital. Score is the additive
// score or the weighted cost depending on the engine mode.
type HospitalChoice struct {
	Hospital   model.Hospital
	DistanceKm float64
	Score      float64
	Specialty  bool
}

// FindBestHospital ranks hospitals for an incident. Hospitals with invalid
// coordinates are skipped and input order breaks ties.
func (e Engine) FindBestHospital(at model.Point, category string, priority model.Priority, hospitals []model.Hospital) (HospitalChoice, error) {
	mapped := e.MapCategory(category)
	var (
		best  HospitalChoice
		found bool
	)
	for _, h := range hospitals {
		if !h.Location.Valid() {
			continue
		}
		d := geo.DistanceKm(at, h.Location)
		c := HospitalChoice{Hospital: h, DistanceKm: d, Specialty: h.HasSpecialty(mapped)}
		if e.Mode == ModeWeightedCost {
			c.Score = WeightedCost(h, d, c.Specialty, priority)
			if !found || c.Score < best.Score {
				best, found = c, true
			}
			continue
		}
		c.Score = AdditiveScore(h, d, c.Specialty, priority)
		if !found || c.Score > best.Score {
			best, found = c, true
		}
	}
	if !found {
		return HospitalChoice{}, model.Wrap(model.KindNoCapacity, model.ErrNoHospitalAvailable, "scoring")
	}
	return best, nil
}

// AdditiveScore is 100 - load - distance, +20 on a specialty match and +15
// for HIGH priority incidents at trauma centres. Higher is better.
func AdditiveScore(h model.Hospital, distanceKm float64, specialty bool, priority model.Priority) float64 {
	s := BaseScore - float64(h.Load) - distanceKm
	if specialty {
		s += SpecialtyBonus
	}
	if priority == model.PriorityHigh && h.HasSpecialty("trauma") {
		s += TraumaBonus
	}
	return s
}

// WeightedCost is distance + load/10, or distance*1.5 + load/20 for HIGH
// priority, minus 2 on a specialty match. Lower is better.
func WeightedCost(h model.Hospital, distanceKm float64, specialty bool, priority model.Priority) float64 {
	c := distanceKm + float64(h.Load)/LoadCostDivisor
	if priority == model.PriorityHigh {
		c = distanceKm*HighDistanceFactor + float64(h.Load)/HighLoadCostDivisor
	}
	if specialty {
		c -= SpecialtyCostDiscount
	}
	return c
}
