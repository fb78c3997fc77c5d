package models

import (
	"github.com/google/uuid"
)

// Color is a nested display attribute of an item.
type Color struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Hex  string    `json:"hex,omitempty"`
}

// Collection groups items for display.
type Collection struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Item is one draftable unit from a lottery catalog.
type Item struct {
	ID         uuid.UUID   `json:"id"`
	PartID     uuid.UUID   `json:"part_id"`
	Name       string      `json:"name"`
	ImageURL   string      `json:"image_url,omitempty"`
	Color      *Color      `json:"color,omitempty"`
	Collection *Collection `json:"collection,omitempty"`
	Value      float64     `json:"value"`
	Quantity   int         `json:"quantity"`
}
