package models

import (
	"time"

	"github.com/google/uuid"
)

// Chamber identifies a congressional chamber.
type Chamber string

const (
	ChamberHouse  Chamber = "house"
	ChamberSenate Chamber = "senate"
)

// Person is a legislator or appointee record. BioguideID is the natural key
// for congressional members across Congress.gov and the legislators dataset.
type Person struct {
	ID           uuid.UUID `json:"id"`
	BioguideID   string    `json:"bioguide_id,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Party        string    `json:"party,omitempty"`
	State        string    `json:"state,omitempty"`
	Chamber      Chamber   `json:"chamber,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	ImportSource string    `json:"import_source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
