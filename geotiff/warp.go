package geotiff

import (
	"fmt"
	"strconv"

	"github.com/airbusgeo/godal"
)

// Clip crops src to the geometries of the cutline vector file and writes the
// result to dst. Pixels outside the cutline are set to DefaultNoData.
func Clip(src, cutline, dst string) error {
	return warp(src, dst, []string{
		"-of", "GTiff",
		"-cutline", cutline,
		"-crop_to_cutline",
		"-dstnodata", strconv.FormatFloat(DefaultNoData, 'f', -1, 64),
	})
}

// AlignTo resamples src onto the pixel grid of ref (CRS, extent and size) using
// nearest neighbour resampling, which keeps wrapped phase values intact, and
// writes the result to dst.
func AlignTo(src string, ref *Raster, dst string) error {
	if ref.EPSG == 0 && ref.Projection == "" {
		return fmt.Errorf("reference %s has no crs", ref.Path)
	}
	targetSRS := ref.Projection
	if ref.EPSG != 0 {
		targetSRS = "EPSG:" + strconv.Itoa(ref.EPSG)
	}

	xmin, ymax := ref.ULCorner[0], ref.ULCorner[1]
	xmax, ymin := ref.LRCorner[0], ref.LRCorner[1]
	if xmin > xmax {
		xmin, xmax = xmax, xmin
	}
	if ymin > ymax {
		ymin, ymax = ymax, ymin
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return warp(src, dst, []string{
		"-of", "GTiff",
		"-t_srs", targetSRS,
		"-te", f(xmin), f(ymin), f(xmax), f(ymax),
		"-ts", strconv.Itoa(ref.XSize), strconv.Itoa(ref.YSize),
		"-r", "near",
		"-dstnodata", f(DefaultNoData),
	})
}

func warp(src, dst string, switches []string) (err error) {
	Register()

	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	out, err := ds.Warp(dst, switches)
	if err != nil {
		return fmt.Errorf("warp %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
