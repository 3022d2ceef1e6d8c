package model

import (
	"fmt"
	"time"
)

type Host struct {
	ID        string
	Name      string
	Email     string
	Timezone  string
	CreatedAt time.Time
}

// Location loads the host's IANA zone.
func (h Host) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return nil, fmt.Errorf("host %s: invalid timezone %q: %w", h.ID, h.Timezone, err)
	}
	return loc, nil
}
