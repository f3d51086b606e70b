package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Location is a lat/lng pair. It serializes as either a two-element JSON
// array ([lat, lng]) or an object ({"lat":...,"lng":...}). This
// implementation always marshals to the object form; it accepts both on
// unmarshal.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// locationArray is the wire shape used only for decoding [lat, lng].
type locationArray [2]float64

// MarshalJSON writes the object form {"lat":...,"lng":...}.
func (l Location) MarshalJSON() ([]byte, error) {
	type alias Location
	return json.Marshal(alias(l))
}

// UnmarshalJSON accepts either [lat, lng] or {"lat":...,"lng":...}.
func (l *Location) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	if trimmed[0] == '[' {
		var arr locationArray
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return fmt.Errorf("location: decoding array form: %w", err)
		}
		l.Lat = arr[0]
		l.Lng = arr[1]
		return nil
	}

	type alias Location
	var a alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return fmt.Errorf("location: decoding object form: %w", err)
	}
	*l = Location(a)
	return nil
}
