package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/insar-tools/ddphase/geotiff"
	ddlog "github.com/insar-tools/ddphase/internal/log"
	"github.com/insar-tools/ddphase/phase"
	"github.com/insar-tools/ddphase/profile"
	"github.com/rs/zerolog"
)

// Exit codes, one per failure class.
const (
	exitUsage        = 1
	exitParamRead    = 2
	exitParamFormat  = 3
	exitParamInvalid = 4
	exitInput        = 5
	exitGrid         = 6
	exitCompute      = 7
	exitOutDir       = 8
	exitFigure       = 9
	exitGeoTIFF      = 10
	exitMap          = 11
	exitReport       = 12
)

// ErrGridMismatch is returned when the two interferograms are not on the same pixel grid.
var ErrGridMismatch = errors.New("interferograms are not coregistered")

const (
	profileWidthPx  = 1200
	profileHeightPx = 500
)

// stageError carries the exit code of the stage that failed.
type stageError struct {
	code  int
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func fail(code int, stage string, err error) error {
	return &stageError{code: code, stage: stage, err: err}
}

// exitCode returns the process exit code for err.
func exitCode(err error) int {
	var se *stageError
	if errors.As(err, &se) {
		return se.code
	}
	return exitCompute
}

// resolveInput appends .tif when name has no extension and places relative
// names under dir.
func resolveInput(dir, name string) string {
	if filepath.Ext(name) == "" {
		name += ".tif"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// interferogramName strips prefix from the file name and keeps its first n characters.
func interferogramName(file, prefix string, n int) string {
	base := filepath.Base(file)
	if prefix != "" {
		base = strings.ReplaceAll(base, prefix, "")
	}
	r := []rune(base)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// makeDir creates outDir under dataDir (an absolute outDir is used as is) and returns its path.
func makeDir(dataDir, outDir string) (string, error) {
	path := outDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, outDir)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// checkGrid verifies that sec lies on the pixel grid of ref.
func checkGrid(ref, sec *geotiff.Raster) error {
	if ref.XSize != sec.XSize || ref.YSize != sec.YSize {
		return fmt.Errorf("%w: %dx%d vs %dx%d pixels: %w",
			ErrGridMismatch, ref.XSize, ref.YSize, sec.XSize, sec.YSize, phase.ErrShapeMismatch)
	}
	if err := ref.SameGrid(sec, 1e-6); err != nil {
		return fmt.Errorf("%w: %w", ErrGridMismatch, err)
	}
	return nil
}

// unitPhasors returns the phase field of r (radians, NaN for nodata) and its
// unit phasors. Complex bands are used directly.
func unitPhasors(r *geotiff.Raster) (phi []float64, z []complex128) {
	if r.IsComplex() {
		c := append([]complex128(nil), r.CData...)
		if r.HasNoData {
			phase.MaskNoDataComplex(c, r.NoData)
		}
		z = phase.Normalize(c)
		return phase.Angle(z), z
	}
	phi = append([]float64(nil), r.Data...)
	if r.HasNoData {
		phase.MaskNoData(phi, r.NoData)
	}
	return phi, phase.ToComplex(phi)
}

// Run computes the double difference of p.Reference and p.Secondary and writes
// every requested product. The returned report lists the products written.
func Run(ctx context.Context, p RunParams) (*RunReport, error) {
	start := time.Now()
	logger := ddlog.WithComponent("pipeline")

	refPath := resolveInput(p.Directory, p.Reference)
	secPath := resolveInput(p.Directory, p.Secondary)
	name1 := interferogramName(refPath, p.FilePrefix, p.NameLength)
	name2 := interferogramName(secPath, p.FilePrefix, p.NameLength)
	logger.Info().Str("reference", refPath).Str("secondary", secPath).Msg("Loading interferograms")

	stageStart := time.Now()
	ref, err := geotiff.Read(refPath)
	if err != nil {
		return nil, fail(exitInput, "reference interferogram", err)
	}
	sec, err := geotiff.Read(secPath)
	if err != nil {
		return nil, fail(exitInput, "secondary interferogram", err)
	}
	logger.Debug().Dur("took", time.Since(stageStart)).Int("cols", ref.XSize).Int("rows", ref.YSize).Msg("Rasters read")

	var transect *profile.Transect
	if p.ProfileGiven {
		transect = &profile.Transect{
			StartX: p.ProfileStartPx[0], StartY: p.ProfileStartPx[1],
			EndX: p.ProfileEndPx[0], EndY: p.ProfileEndPx[1],
			PixelSize: math.Abs(ref.XRes),
		}
		if err := transect.Validate(ref.YSize, ref.XSize); err != nil {
			return nil, fail(exitFigure, "profile", err)
		}
	}

	outDir, err := makeDir(p.Directory, p.OutDir)
	if err != nil {
		return nil, fail(exitOutDir, "output directory", err)
	}
	base := filepath.Join(outDir, name1+"-"+name2)

	report := &RunReport{
		Reference:          InputReport{Path: refPath, Name: name1},
		Secondary:          InputReport{Path: secPath, Name: name2},
		DifferenceMode:     p.DifferenceMode.String(),
		FilterWindowPixels: p.FilterWindowPixels,
		Outputs:            map[string]string{},
	}

	if p.AlignSecondary {
		aligned := filepath.Join(outDir, name2+"_aligned.tif")
		if err := geotiff.AlignTo(secPath, ref, aligned); err != nil {
			return nil, fail(exitGrid, "align secondary", err)
		}
		if sec, err = geotiff.Read(aligned); err != nil {
			return nil, fail(exitGrid, "align secondary", err)
		}
		report.SecondaryAligned = true
		report.Outputs["aligned_secondary"] = aligned
		logger.Info().Str("file", aligned).Msg("Secondary resampled onto the reference grid")
	}

	if err := checkGrid(ref, sec); err != nil {
		return nil, fail(exitGrid, "coregistration", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(exitCompute, "double difference", err)
	}

	cols, rows := ref.XSize, ref.YSize
	report.Columns, report.Rows = cols, rows
	report.EPSG = ref.EPSG
	report.GeoTransform = ref.GeoTransform

	stageStart = time.Now()
	refPhi, refZ := unitPhasors(ref)
	secPhi, secZ := unitPhasors(sec)
	combined, err := phase.Combine(refZ, secZ, p.DifferenceMode)
	if err != nil {
		return nil, fail(exitCompute, "double difference", err)
	}

	if p.FilterWindowPixels > 0 {
		consistency, err := PhaseConsistency(phase.Normalize(combined), rows, cols, p.FilterWindowPixels)
		if err != nil {
			return nil, fail(exitCompute, "phase consistency", err)
		}
		combined, err = SmoothComplex(combined, rows, cols, p.FilterWindowPixels)
		if err != nil {
			return nil, fail(exitCompute, "smoothing", err)
		}
		cs := phase.Summarize(consistency)
		report.Consistency = &cs

		path := base + "_consistency.png"
		if err := writeQuicklook(path, consistency, rows, cols); err != nil {
			return nil, fail(exitFigure, "consistency quicklook", err)
		}
		report.Outputs["consistency"] = path
	}
	dd := phase.Angle(combined)
	logger.Info().Dur("took", time.Since(stageStart)).Str("mode", p.DifferenceMode.String()).
		Int("filter_window", p.FilterWindowPixels).Msg("Double difference computed")

	report.Reference.Stats = phase.Summarize(refPhi)
	report.Secondary.Stats = phase.Summarize(secPhi)
	report.Result = phase.Summarize(dd)

	if err := ctx.Err(); err != nil {
		return nil, fail(exitCompute, "double difference", err)
	}

	stageStart = time.Now()
	figPath := base + "." + p.FigureFormat
	panels := []Panel{
		{Title: name1, Phase: refPhi},
		{Title: name2, Phase: secPhi},
		{Title: "Double Difference", Phase: dd},
	}
	figOpts := FigureOptions{WidthIn: p.FigureWidthIn, HeightIn: p.FigureHeightIn, DPI: p.FigureDPI, Format: p.FigureFormat}
	if err := MakeDoubleDifferenceFigure(figPath, panels, cols, rows, figOpts); err != nil {
		return nil, fail(exitFigure, "figure", err)
	}
	report.Outputs["figure"] = figPath
	logger.Info().Dur("took", time.Since(stageStart)).Str("file", figPath).Msg("Figure written")

	if p.WriteGeoTIFF {
		tifPath := base + ".tif"
		if err := geotiff.WriteLike(tifPath, dd, ref, p.NoDataValue); err != nil {
			return nil, fail(exitGeoTIFF, "geotiff", err)
		}
		report.Outputs["geotiff"] = tifPath
		logger.Info().Str("file", tifPath).Msg("GeoTIFF written")

		if p.ClipCutlinePath != "" {
			clipped := base + "_clipped.tif"
			if err := geotiff.Clip(tifPath, p.ClipCutlinePath, clipped); err != nil {
				return nil, fail(exitGeoTIFF, "clip", err)
			}
			report.Outputs["clipped"] = clipped
			logger.Info().Str("file", clipped).Str("cutline", p.ClipCutlinePath).Msg("Clipped GeoTIFF written")
		}
	}

	if p.MapGiven {
		if err := ctx.Err(); err != nil {
			return nil, fail(exitMap, "map", err)
		}
		stageStart = time.Now()
		mapPath, err := writeMap(base, ref, dd, p)
		if err != nil {
			return nil, fail(exitMap, "map", err)
		}
		report.Outputs["map"] = mapPath
		logger.Info().Dur("took", time.Since(stageStart)).Str("file", mapPath).Msg("Map written")
	}

	if transect != nil {
		profilePath, transectPath, err := writeProfile(base, name1+"-"+name2, ref, dd, transect, logger)
		if err != nil {
			return nil, fail(exitFigure, "profile", err)
		}
		report.Outputs["profile"] = profilePath
		report.Outputs["transect"] = transectPath
	}

	report.CreatedAt = time.Now().UTC()
	report.ElapsedSeconds = time.Since(start).Seconds()
	reportPath := base + "_summary.json"
	report.Outputs["report"] = reportPath
	if err := WriteReport(reportPath, report); err != nil {
		return nil, fail(exitReport, "report", err)
	}

	return report, nil
}

func writeQuicklook(path string, values []float64, rows, cols int) error {
	m, err := Reshape1DTo2D(values, rows, cols)
	if err != nil {
		return err
	}
	img, err := MatrixToGrayViewPercentile(m, 2, 98)
	if err != nil {
		return err
	}
	return SaveImagePNG(path, img)
}

func writeMap(base string, ref *geotiff.Raster, dd []float64, p RunParams) (string, error) {
	outlines, err := geotiff.ReadOutlines(p.MapOutlinePath, ref.EPSG)
	if err != nil {
		return "", err
	}
	path := base + "_map." + p.FigureFormat
	opts := MapOptions{
		Title:     filepath.Base(base),
		ExtentDeg: p.MapExtentDeg,
		FigureOptions: FigureOptions{
			WidthIn:  p.MapWidthIn,
			HeightIn: p.MapHeightIn,
			DPI:      p.FigureDPI,
			Format:   p.FigureFormat,
		},
	}
	if err := MakeMapFigure(path, ref, dd, outlines, opts); err != nil {
		return "", err
	}
	return path, nil
}

// writeProfile samples dd along t, which must already be validated against ref.
func writeProfile(base, title string, ref *geotiff.Raster, dd []float64, t *profile.Transect, logger zerolog.Logger) (string, string, error) {
	m, err := Reshape1DTo2D(dd, ref.YSize, ref.XSize)
	if err != nil {
		return "", "", err
	}
	points := profile.Extract(m, t)
	jumps := profile.FindWrapJumps(points, math.Pi)
	logger.Info().Int("samples", len(points)).Int("wrap_jumps", len(jumps)).Msg("Profile extracted")

	xLabel := "Distance (m)"
	if t.PixelSize == 0 {
		xLabel = "Distance (pixels)"
	}
	profilePath := base + "_profile.png"
	if err := profile.SaveProfilePlot(profilePath, points, jumps, title, xLabel, profileWidthPx, profileHeightPx); err != nil {
		return "", "", err
	}

	gray, err := MatrixToGrayFixed(m, -math.Pi, math.Pi)
	if err != nil {
		return "", "", err
	}
	transectPath := base + "_transect.png"
	if err := SaveImagePNG(transectPath, profile.DrawTransectOnImage(gray, t)); err != nil {
		return "", "", err
	}
	return profilePath, transectPath, nil
}
