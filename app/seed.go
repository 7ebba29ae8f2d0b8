package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ers/core/model"
)

// Fixtures is the seed file layout.
type Fixtures struct {
	Vehicles  []model.Vehicle  `yaml:"vehicles"`
	Hospitals []model.Hospital `yaml:"hospitals"`
}

// Registrar registers fleet and hospital records.
type Registrar interface {
	RegisterVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	RegisterHospital(ctx context.Context, h model.Hospital) (model.Hospital, error)
}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Vehicles  int `json:"vehicles"`
	Hospitals int `json:"hospitals"`
}

// LoadFixtures reads a YAML seed file.
func LoadFixtures(path string) (Fixtures, error) {
	var f Fixtures
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return f, nil
}

// Seed registers every fixture. Existing vehicles keep their assignment.
func Seed(ctx context.Context, r Registrar, f Fixtures) (SeedResult, error) {
	var res SeedResult
	for _, h := range f.Hospitals {
		if _, err := r.RegisterHospital(ctx, h); err != nil {
			return res, fmt.Errorf("seed hospital %s: %w", h.ID, err)
		}
		res.Hospitals++
	}
	for _, v := range f.Vehicles {
		if _, err := r.RegisterVehicle(ctx, v); err != nil {
			return res, fmt.Errorf("seed vehicle %s: %w", v.ID, err)
		}
		res.Vehicles++
	}
	return res, nil
}
