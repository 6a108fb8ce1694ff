package main

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/KevinWang15/go-json5"
	"github.com/insar-tools/ddphase/geotiff"
	"github.com/insar-tools/ddphase/phase"
)

const defaultDataDirectory = "/Volumes/Extreme Pro/Peterman_glacier_X7_subset"

// RunParams holds everything a double difference run needs. Values come from
// the defaults, then the optional json5 parameter file, then explicit CLI flags.
type RunParams struct {
	Reference          string
	Secondary          string
	Directory          string
	OutDir             string
	FilePrefix         string
	NameLength         int
	DifferenceMode     phase.Mode
	FilterWindowPixels int
	AlignSecondary     bool
	FigureWidthIn      float64
	FigureHeightIn     float64
	FigureDPI          float64
	FigureFormat       string
	WriteGeoTIFF       bool
	NoDataValue        float64
	ClipCutlinePath    string
	MapGiven           bool
	MapOutlinePath     string
	MapExtentDeg       [4]float64 // lon min, lon max, lat min, lat max
	MapWidthIn         float64
	MapHeightIn        float64
	ProfileGiven       bool
	ProfileStartPx     [2]float64 // column, row
	ProfileEndPx       [2]float64 // column, row
	WindowSizePixels   int
	ShowInput          bool
	LogLevel           string
}

func defaultRunParams() RunParams {
	return RunParams{
		Directory:      defaultDataDirectory,
		OutDir:         "output_test",
		FilePrefix:     "ICEYE-phase_geo-",
		NameLength:     17,
		DifferenceMode: phase.ModeConjugate,
		FigureWidthIn:  15,
		FigureHeightIn: 5,
		FigureDPI:      200,
		FigureFormat:   "jpeg",
		WriteGeoTIFF:   true,
		NoDataValue:    geotiff.DefaultNoData,
		MapExtentDeg:   [4]float64{-61.1, -59.9, 80.4, 81.2},
		MapWidthIn:     6,
		MapHeightIn:    9,
	}
}

// parseParamFile decodes json5 (or plain json) parameter file contents into a generic table.
func parseParamFile(data []byte) (map[string]interface{}, error) {
	var jsonTable map[string]interface{}
	err := json.Unmarshal(data, &jsonTable)
	return jsonTable, err
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func keyName(path []string) string {
	return strings.Join(path, ".")
}

func readString(jsonTable map[string]interface{}, dst *string, path ...string) (string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return "", true
	}
	s, ok := v.(string)
	if !ok {
		return keyName(path) + ": is not a string", false
	}
	*dst = s
	return "", true
}

func readFloat(jsonTable map[string]interface{}, dst *float64, path ...string) (string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return "", true
	}
	f, ok := v.(float64)
	if !ok {
		return keyName(path) + ": is not a float64", false
	}
	*dst = f
	return "", true
}

func readInt(jsonTable map[string]interface{}, dst *int, path ...string) (string, bool) {
	f := float64(*dst)
	if msg, ok := readFloat(jsonTable, &f, path...); !ok {
		return msg, false
	}
	if f != float64(int(f)) {
		return keyName(path) + ": is not a whole number", false
	}
	*dst = int(f)
	return "", true
}

func readBool(jsonTable map[string]interface{}, dst *bool, path ...string) (string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return "", true
	}
	b, ok := v.(bool)
	if !ok {
		return keyName(path) + ": is not a bool", false
	}
	*dst = b
	return "", true
}

// validateJsonFileAndFillParams copies every recognized key of jsonTable into
// params. Missing keys keep their current value. The first problem found is
// returned as "<key>: <problem>" with ok == false.
func validateJsonFileAndFillParams(jsonTable map[string]interface{}, params *RunParams) (string, bool) {
	msg := "No problem found in json file"

	steps := []func() (string, bool){
		func() (string, bool) { return readBool(jsonTable, &params.ShowInput, "show_input_bool") },
		func() (string, bool) { return readString(jsonTable, &params.Reference, "reference") },
		func() (string, bool) { return readString(jsonTable, &params.Secondary, "secondary") },
		func() (string, bool) { return readString(jsonTable, &params.Directory, "directory") },
		func() (string, bool) { return readString(jsonTable, &params.OutDir, "outdir") },
		func() (string, bool) { return readString(jsonTable, &params.FilePrefix, "file_prefix") },
		func() (string, bool) { return readInt(jsonTable, &params.NameLength, "name_length") },
		func() (string, bool) {
			var mode string
			if msg, ok := readString(jsonTable, &mode, "difference_mode"); !ok {
				return msg, false
			}
			if mode == "" {
				return "", true
			}
			m, err := phase.ParseMode(mode)
			if err != nil {
				return "difference_mode: must be \"conjugate\" or \"subtract\"", false
			}
			params.DifferenceMode = m
			return "", true
		},
		func() (string, bool) {
			return readInt(jsonTable, &params.FilterWindowPixels, "filter_window_pixels")
		},
		func() (string, bool) { return readBool(jsonTable, &params.AlignSecondary, "align_secondary_bool") },
		func() (string, bool) { return readFloat(jsonTable, &params.FigureWidthIn, "figure", "width_in") },
		func() (string, bool) { return readFloat(jsonTable, &params.FigureHeightIn, "figure", "height_in") },
		func() (string, bool) { return readFloat(jsonTable, &params.FigureDPI, "figure", "dpi") },
		func() (string, bool) { return readString(jsonTable, &params.FigureFormat, "figure", "format") },
		func() (string, bool) { return readBool(jsonTable, &params.WriteGeoTIFF, "write_geotiff_bool") },
		func() (string, bool) { return readFloat(jsonTable, &params.NoDataValue, "nodata_value") },
		func() (string, bool) { return readString(jsonTable, &params.ClipCutlinePath, "clip_cutline_path") },
		func() (string, bool) { return readInt(jsonTable, &params.WindowSizePixels, "window_size_pixels") },
		func() (string, bool) { return readString(jsonTable, &params.LogLevel, "log_level") },
	}
	for _, step := range steps {
		if m, ok := step(); !ok {
			return m, false
		}
	}

	// The map group is optional; when present its outline_path is required.
	_, ok := getLeafValue(jsonTable, "map")
	params.MapGiven = ok
	if ok {
		v, ok := getLeafValue(jsonTable, "map", "outline_path")
		if !ok {
			msg = "map.outline_path: not found"
			return msg, false
		}
		params.MapOutlinePath, ok = v.(string)
		if !ok {
			msg = "map.outline_path: is not a string"
			return msg, false
		}

		v, ok = getLeafValue(jsonTable, "map", "extent_deg")
		if ok {
			extent, ok := v.([]interface{})
			if !ok || len(extent) != 4 {
				msg = "map.extent_deg: is not an array of 4 numbers"
				return msg, false
			}
			for i, e := range extent {
				f, ok := e.(float64)
				if !ok {
					msg = fmt.Sprintf("map.extent_deg[%d]: is not a float64", i)
					return msg, false
				}
				params.MapExtentDeg[i] = f
			}
		}
		if m, ok := readFloat(jsonTable, &params.MapWidthIn, "map", "width_in"); !ok {
			return m, false
		}
		if m, ok := readFloat(jsonTable, &params.MapHeightIn, "map", "height_in"); !ok {
			return m, false
		}
	}

	// The profile group is optional; when present both end points are required.
	_, ok = getLeafValue(jsonTable, "profile")
	params.ProfileGiven = ok
	if ok {
		if m, ok := readPoint(jsonTable, &params.ProfileStartPx, "profile", "start_px"); !ok {
			return m, false
		}
		if m, ok := readPoint(jsonTable, &params.ProfileEndPx, "profile", "end_px"); !ok {
			return m, false
		}
	}

	return msg, true
}

// readPoint reads a required [column, row] pair.
func readPoint(jsonTable map[string]interface{}, dst *[2]float64, path ...string) (string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return keyName(path) + ": not found", false
	}
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return keyName(path) + ": is not an array of 2 numbers", false
	}
	for i, e := range pair {
		f, ok := e.(float64)
		if !ok {
			return fmt.Sprintf("%s[%d]: is not a float64", keyName(path), i), false
		}
		dst[i] = f
	}
	return "", true
}

var errMissingInputs = errors.New("both a reference and a secondary interferogram are required")

// checkParams verifies value ranges once all sources have been merged.
func checkParams(p RunParams) error {
	if p.Reference == "" || p.Secondary == "" {
		return errMissingInputs
	}
	if p.NameLength < 1 {
		return fmt.Errorf("name_length must be at least 1")
	}
	if p.FilterWindowPixels < 0 {
		return fmt.Errorf("filter_window_pixels must not be negative")
	}
	if p.FigureWidthIn <= 0 || p.FigureHeightIn <= 0 || p.FigureDPI <= 0 {
		return fmt.Errorf("figure size and dpi must be positive")
	}
	switch p.FigureFormat {
	case "jpeg", "jpg", "png":
	default:
		return fmt.Errorf("figure.format %q is not one of jpeg, png", p.FigureFormat)
	}
	if p.MapGiven {
		e := p.MapExtentDeg
		if !(e[0] < e[1] && e[2] < e[3]) {
			return fmt.Errorf("map.extent_deg must be [lon_min, lon_max, lat_min, lat_max]")
		}
		if p.MapWidthIn <= 0 || p.MapHeightIn <= 0 {
			return fmt.Errorf("map size must be positive")
		}
	}
	if p.ClipCutlinePath != "" && !p.WriteGeoTIFF {
		return fmt.Errorf("clip_cutline_path needs write_geotiff_bool to be true")
	}
	if p.WindowSizePixels < 0 {
		return fmt.Errorf("window_size_pixels must not be negative")
	}
	return nil
}
