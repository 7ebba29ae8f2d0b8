package model

import "strings"

// DefaultMaxLoad is the upper bound applied to hospital load.
const DefaultMaxLoad = 100

// Hospital is a receiving facility. Load is a 0..MaxLoad occupancy proxy.
type Hospital struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Address     string   `json:"address,omitempty" yaml:"address"`
	Phone       string   `json:"phone,omitempty" yaml:"phone"`
	Location    Point    `json:"location" yaml:"location"`
	Specialties []string `json:"specialties" yaml:"specialties"`
	Load        int      `json:"load" yaml:"load" validate:"gte=0,lte=100"`
}

// HasSpecialty compares case-insensitively.
func (h Hospital) HasSpecialty(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	for _, s := range h.Specialties {
		if strings.ToLower(strings.TrimSpace(s)) == tag {
			return true
		}
	}
	return false
}

// ClampLoad bounds load to [0, max].
func ClampLoad(load, max int) int {
	if max <= 0 {
		max = DefaultMaxLoad
	}
	if load < 0 {
		return 0
	}
	if load > max {
		return max
	}
	return load
}
