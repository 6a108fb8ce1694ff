package main

import (
	"testing"

	"github.com/insar-tools/ddphase/phase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillFrom(t *testing.T, src string) (RunParams, string, bool) {
	t.Helper()
	jsonTable, err := parseParamFile([]byte(src))
	require.NoError(t, err)
	p := defaultRunParams()
	msg, ok := validateJsonFileAndFillParams(jsonTable, &p)
	return p, msg, ok
}

func TestDefaultRunParams(t *testing.T) {
	p := defaultRunParams()
	assert.Equal(t, "output_test", p.OutDir)
	assert.Equal(t, "ICEYE-phase_geo-", p.FilePrefix)
	assert.Equal(t, 17, p.NameLength)
	assert.Equal(t, phase.ModeConjugate, p.DifferenceMode)
	assert.Equal(t, 15.0, p.FigureWidthIn)
	assert.Equal(t, 5.0, p.FigureHeightIn)
	assert.Equal(t, 200.0, p.FigureDPI)
	assert.Equal(t, "jpeg", p.FigureFormat)
	assert.True(t, p.WriteGeoTIFF)
	assert.False(t, p.MapGiven)
	assert.False(t, p.ProfileGiven)
}

func TestParamFileJSON5Syntax(t *testing.T) {
	p, msg, ok := fillFrom(t, `{
		// inputs
		reference: "ICEYE-phase_geo-20230601T101010_A",
		secondary: "ICEYE-phase_geo-20230613T101010_B",
		difference_mode: "subtract",
		filter_window_pixels: 5,
		figure: {width_in: 12, dpi: 100, format: "png"},
	}`)
	require.True(t, ok, msg)
	assert.Equal(t, "ICEYE-phase_geo-20230601T101010_A", p.Reference)
	assert.Equal(t, "ICEYE-phase_geo-20230613T101010_B", p.Secondary)
	assert.Equal(t, phase.ModeSubtract, p.DifferenceMode)
	assert.Equal(t, 5, p.FilterWindowPixels)
	assert.Equal(t, 12.0, p.FigureWidthIn)
	assert.Equal(t, 5.0, p.FigureHeightIn)
	assert.Equal(t, 100.0, p.FigureDPI)
	assert.Equal(t, "png", p.FigureFormat)
}

func TestParamFileTypeErrors(t *testing.T) {
	cases := []struct{ src, want string }{
		{`{"reference": 3}`, "reference: is not a string"},
		{`{"name_length": "long"}`, "name_length: is not a float64"},
		{`{"name_length": 2.5}`, "name_length: is not a whole number"},
		{`{"write_geotiff_bool": "yes"}`, "write_geotiff_bool: is not a bool"},
		{`{"figure": {"dpi": "high"}}`, "figure.dpi: is not a float64"},
		{`{"difference_mode": "divide"}`, `difference_mode: must be "conjugate" or "subtract"`},
		{`{"map": {}}`, "map.outline_path: not found"},
		{`{"map": {"outline_path": 1}}`, "map.outline_path: is not a string"},
		{`{"map": {"outline_path": "c.shp", "extent_deg": [1, 2]}}`, "map.extent_deg: is not an array of 4 numbers"},
		{`{"profile": {"start_px": [1, 2]}}`, "profile.end_px: not found"},
		{`{"profile": {"start_px": [1]}}`, "profile.start_px: is not an array of 2 numbers"},
		{`{"profile": {"start_px": [1, "a"]}}`, "profile.start_px[1]: is not a float64"},
	}
	for _, c := range cases {
		_, msg, ok := fillFrom(t, c.src)
		assert.False(t, ok, c.src)
		assert.Equal(t, c.want, msg, c.src)
	}
}

func TestParamFileMapGroup(t *testing.T) {
	p, msg, ok := fillFrom(t, `{
		"map": {
			"outline_path": "coast.geojson",
			"extent_deg": [-62, -59, 80, 81.5],
			"width_in": 8
		}
	}`)
	require.True(t, ok, msg)
	assert.True(t, p.MapGiven)
	assert.Equal(t, "coast.geojson", p.MapOutlinePath)
	assert.Equal(t, [4]float64{-62, -59, 80, 81.5}, p.MapExtentDeg)
	assert.Equal(t, 8.0, p.MapWidthIn)
	assert.Equal(t, 9.0, p.MapHeightIn)
}

func TestParamFileProfileGroup(t *testing.T) {
	p, msg, ok := fillFrom(t, `{"profile": {"start_px": [10, 20.5], "end_px": [300, 40]}}`)
	require.True(t, ok, msg)
	assert.True(t, p.ProfileGiven)
	assert.Equal(t, [2]float64{10, 20.5}, p.ProfileStartPx)
	assert.Equal(t, [2]float64{300, 40}, p.ProfileEndPx)
}

func TestCheckParams(t *testing.T) {
	valid := defaultRunParams()
	valid.Reference, valid.Secondary = "a", "b"
	require.NoError(t, checkParams(valid))

	tests := []struct {
		name   string
		modify func(p *RunParams)
	}{
		{"missing secondary", func(p *RunParams) { p.Secondary = "" }},
		{"name length", func(p *RunParams) { p.NameLength = 0 }},
		{"negative filter", func(p *RunParams) { p.FilterWindowPixels = -1 }},
		{"zero dpi", func(p *RunParams) { p.FigureDPI = 0 }},
		{"format", func(p *RunParams) { p.FigureFormat = "tiff" }},
		{"map extent", func(p *RunParams) { p.MapGiven = true; p.MapExtentDeg = [4]float64{1, 0, 0, 1} }},
		{"map size", func(p *RunParams) { p.MapGiven = true; p.MapHeightIn = 0 }},
		{"clip without geotiff", func(p *RunParams) { p.ClipCutlinePath = "cut.shp"; p.WriteGeoTIFF = false }},
		{"window size", func(p *RunParams) { p.WindowSizePixels = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.modify(&p)
			assert.Error(t, checkParams(p))
		})
	}
}
