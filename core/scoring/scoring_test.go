package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/model"
)

var (
	origin      = model.Point{Lat: 22.30, Lng: 73.18}
	kmPerDegree = geo.EarthRadiusKm * math.Pi / 180
)

// north returns a point km kilometres due north of origin.
func north(km float64) model.Point {
	return model.Point{Lat: origin.Lat + km/kmPerDegree, Lng: origin.Lng}
}

func TestFindBestHospitalAdditive(t *testing.T) {
	hospitals := []model.Hospital{
		{ID: "near", Location: north(2), Load: 60},
		{ID: "specialist", Location: north(5), Load: 20, Specialties: []string{"trauma"}},
	}
	choice, err := Engine{}.FindBestHospital(origin, "accident", model.PriorityMedium, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "specialist", choice.Hospital.ID)
	assert.InDelta(t, 95.0, choice.Score, 1e-6)
	assert.InDelta(t, 38.0, AdditiveScore(hospitals[0], 2, false, model.PriorityMedium), 1e-9)
}

func TestFindBestHospitalTraumaBonus(t *testing.T) {
	hospitals := []model.Hospital{
		{ID: "general", Location: north(1), Load: 10},
		{ID: "trauma", Location: north(1), Load: 20, Specialties: []string{"Trauma"}},
	}
	choice, err := Engine{}.FindBestHospital(origin, "fall", model.PriorityHigh, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "trauma", choice.Hospital.ID)

	choice, err = Engine{}.FindBestHospital(origin, "fall", model.PriorityLow, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "general", choice.Hospital.ID)
}

func TestFindBestHospitalTieKeepsInputOrder(t *testing.T) {
	hospitals := []model.Hospital{
		{ID: "first", Location: north(3), Load: 40},
		{ID: "second", Location: north(3), Load: 40},
	}
	for _, mode := range []Mode{ModeAdditive, ModeWeightedCost} {
		choice, err := New(mode, nil).FindBestHospital(origin, "medical", model.PriorityMedium, hospitals)
		require.NoError(t, err)
		assert.Equal(t, "first", choice.Hospital.ID, "mode %s", mode)
	}
}

func TestFindBestHospitalSkipsInvalidCoordinates(t *testing.T) {
	hospitals := []model.Hospital{
		{ID: "broken", Location: model.Point{Lat: math.NaN(), Lng: 0}},
		{ID: "ok", Location: north(10), Load: 90},
	}
	choice, err := Engine{}.FindBestHospital(origin, "medical", model.PriorityLow, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "ok", choice.Hospital.ID)

	_, err = Engine{}.FindBestHospital(origin, "medical", model.PriorityLow, hospitals[:1])
	assert.True(t, errors.Is(err, model.ErrNoHospitalAvailable))
	_, err = Engine{}.FindBestHospital(origin, "medical", model.PriorityLow, nil)
	assert.True(t, errors.Is(err, model.ErrNoHospitalAvailable))
	assert.Equal(t, model.KindNoCapacity, model.KindOf(err))
}

func TestFindBestHospitalWeightedCost(t *testing.T) {
	e := New(ModeWeightedCost, nil)
	hospitals := []model.Hospital{
		{ID: "busy-near", Location: north(2), Load: 90},
		{ID: "idle-far", Location: north(6), Load: 0},
	}
	// MEDIUM: 2+9=11 vs 6+0=6
	choice, err := e.FindBestHospital(origin, "medical", model.PriorityMedium, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "idle-far", choice.Hospital.ID)
	assert.InDelta(t, 6.0, choice.Score, 1e-6)

	// HIGH: 3+4.5=7.5 vs 9+0=9
	choice, err = e.FindBestHospital(origin, "medical", model.PriorityHigh, hospitals)
	require.NoError(t, err)
	assert.Equal(t, "busy-near", choice.Hospital.ID)
	assert.InDelta(t, 7.5, choice.Score, 1e-6)
}

func TestMapCategory(t *testing.T) {
	e := New(ModeAdditive, map[string]string{"burn": "Burns"})
	cases := map[string]string{
		"Accident": "trauma",
		"fire":     "burns",
		"cardiac":  "cardiology",
		" Burn ":   "burns",
		"Poison":   "poison",
	}
	for in, want := range cases {
		assert.Equal(t, want, e.MapCategory(in), in)
	}
}

func TestFindBestVehicle(t *testing.T) {
	vehicles := []model.Vehicle{
		{ID: "busy", Location: north(0.1), Status: model.StatusDispatched},
		{ID: "far", Location: north(8), Status: model.StatusAvailable},
		{ID: "near", Location: north(1), Status: model.StatusAvailable},
		{ID: "near-twin", Location: north(1), Status: model.StatusAvailable},
	}
	choice, err := Engine{}.FindBestVehicle(origin, vehicles)
	require.NoError(t, err)
	assert.Equal(t, "near", choice.Vehicle.ID)
	assert.InDelta(t, 1.0, choice.DistanceKm, 1e-6)
}

func TestFindBestVehicleBoundaries(t *testing.T) {
	_, err := Engine{}.FindBestVehicle(origin, nil)
	assert.True(t, errors.Is(err, model.ErrNoVehicleAvailable))

	_, err = Engine{}.FindBestVehicle(origin, []model.Vehicle{{ID: "x", Status: model.StatusTransporting}})
	assert.True(t, errors.Is(err, model.ErrNoVehicleAvailable))

	only := []model.Vehicle{{ID: "remote", Location: north(400), Status: model.StatusAvailable}}
	choice, err := Engine{}.FindBestVehicle(origin, only)
	require.NoError(t, err)
	assert.Equal(t, "remote", choice.Vehicle.ID)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAdditive, m)
	m, err = ParseMode("Weighted_Cost")
	require.NoError(t, err)
	assert.Equal(t, ModeWeightedCost, m)
	_, err = ParseMode("random")
	assert.Error(t, err)
}
