package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"
	"github.com/insar-tools/ddphase/phase"
)

// InputReport describes one input interferogram.
type InputReport struct {
	Path  string      `json:"path"`
	Name  string      `json:"name"`
	Stats phase.Stats `json:"stats"`
}

// RunReport is written next to the figure as <name1>-<name2>_summary.json.
type RunReport struct {
	Reference          InputReport       `json:"reference"`
	Secondary          InputReport       `json:"secondary"`
	Columns            int               `json:"columns"`
	Rows               int               `json:"rows"`
	EPSG               int               `json:"epsg"`
	GeoTransform       [6]float64        `json:"geotransform"`
	DifferenceMode     string            `json:"difference_mode"`
	FilterWindowPixels int               `json:"filter_window_pixels"`
	SecondaryAligned   bool              `json:"secondary_aligned"`
	Result             phase.Stats       `json:"result"`
	Consistency        *phase.Stats      `json:"consistency,omitempty"`
	Outputs            map[string]string `json:"outputs"`
	ElapsedSeconds     float64           `json:"elapsed_seconds"`
	CreatedAt          time.Time         `json:"created_at"`
}

// WriteReport atomically writes r as indented JSON.
func WriteReport(path string, r *RunReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
