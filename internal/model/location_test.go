package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationRoundTripObjectForm(t *testing.T) {
	loc := Location{Lat: 52.52, Lng: 13.405}
	b, err := json.Marshal(loc)
	require.NoError(t, err)

	var got Location
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, loc, got)
}

func TestLocationDecodesArrayForm(t *testing.T) {
	var got Location
	require.NoError(t, json.Unmarshal([]byte(`[1.5, -2.5]`), &got))
	assert.Equal(t, Location{Lat: 1.5, Lng: -2.5}, got)
}

func TestLocationDecodesObjectForm(t *testing.T) {
	var got Location
	require.NoError(t, json.Unmarshal([]byte(`{"lat":1.5,"lng":-2.5}`), &got))
	assert.Equal(t, Location{Lat: 1.5, Lng: -2.5}, got)
}

func TestLocationMarshalAlwaysProducesObjectForm(t *testing.T) {
	loc := Location{Lat: 1, Lng: 2}
	b, err := json.Marshal(loc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":1,"lng":2}`, string(b))
}
