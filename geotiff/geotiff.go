// Package geotiff reads and writes single-band georeferenced rasters through
// GDAL, and wraps the GDAL warp operations used to clip a raster to a cutline
// or resample it onto the grid of another raster.
package geotiff

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"
)

const (
	// DefaultEPSG is the polar stereographic north CRS used for Greenland products.
	DefaultEPSG = 3413
	// DefaultNoData is written to output rasters for invalid pixels.
	DefaultNoData = -9999.0
	// DefaultPixelSize is the output pixel size in CRS units when none is given.
	DefaultPixelSize = 5.0
)

var (
	// ErrEmptyRaster is returned for rasters without pixels or bands.
	ErrEmptyRaster = errors.New("raster has no data")
	// ErrUnsupportedBand is returned when a band data type cannot be read.
	ErrUnsupportedBand = errors.New("unsupported band data type")
)

var registerOnce sync.Once

// Register makes every GDAL driver available. It is safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// Raster is band 1 of a georeferenced raster together with its grid description.
type Raster struct {
	Path string

	// Data holds real-valued samples in row-major order. It is nil for complex bands.
	Data []float64
	// CData holds complex samples in row-major order. It is nil for real bands.
	CData []complex128

	XSize, YSize int
	NoData       float64
	HasNoData    bool

	Projection   string // WKT
	EPSG         int    // 0 when the CRS carries no EPSG authority
	GeoTransform [6]float64

	XRes, YRes float64
	XAxis      []float64 // x coordinate of the left edge of each column
	YAxis      []float64 // y coordinate of the top edge of each row
	ULCorner   [2]float64
	LRCorner   [2]float64
}

// IsComplex reports whether the raster was read from a complex band.
func (r *Raster) IsComplex() bool {
	return r.CData != nil
}

// Len returns the number of pixels.
func (r *Raster) Len() int {
	return r.XSize * r.YSize
}

// Read loads band 1 of the raster at path.
func Read(path string) (*Raster, error) {
	Register()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyRaster)
	}
	band := bands[0]
	st := band.Structure()
	cols, rows := st.SizeX, st.SizeY
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyRaster)
	}

	r := &Raster{Path: path, XSize: cols, YSize: rows}

	switch st.DataType {
	case godal.CInt16, godal.CInt32, godal.CFloat32, godal.CFloat64:
		r.CData = make([]complex128, cols*rows)
		if err := band.Read(0, 0, r.CData, cols, rows); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	case godal.Byte, godal.UInt16, godal.Int16, godal.UInt32, godal.Int32, godal.Float32, godal.Float64:
		r.Data = make([]float64, cols*rows)
		if err := band.Read(0, 0, r.Data, cols, rows); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedBand, st.DataType)
	}

	r.NoData, r.HasNoData = band.NoData()

	r.GeoTransform, err = ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("geotransform of %s: %w", path, err)
	}
	r.Projection = ds.Projection()
	if sr := ds.SpatialRef(); sr != nil {
		r.EPSG = epsgOf(sr)
		sr.Close()
	}

	r.fillAxes()
	return r, nil
}

func epsgOf(sr *godal.SpatialRef) int {
	if sr.AuthorityName("") != "EPSG" {
		return 0
	}
	code, err := strconv.Atoi(sr.AuthorityCode(""))
	if err != nil {
		return 0
	}
	return code
}

// fillAxes derives the axes and corners from the geotransform.
func (r *Raster) fillAxes() {
	gt := r.GeoTransform
	r.XRes = gt[1]
	r.YRes = gt[5]
	r.XAxis = make([]float64, r.XSize)
	for i := range r.XAxis {
		r.XAxis[i] = gt[0] + float64(i)*r.XRes
	}
	r.YAxis = make([]float64, r.YSize)
	for i := range r.YAxis {
		r.YAxis[i] = gt[3] + float64(i)*r.YRes
	}
	r.ULCorner = [2]float64{gt[0], gt[3]}
	r.LRCorner = [2]float64{r.XAxis[r.XSize-1] + r.XRes, r.YAxis[r.YSize-1] + r.YRes}
}

// XCenters returns the x coordinate of each column center.
func (r *Raster) XCenters() []float64 {
	c := make([]float64, r.XSize)
	for i, x := range r.XAxis {
		c[i] = x + r.XRes/2
	}
	return c
}

// YCenters returns the y coordinate of each row center.
func (r *Raster) YCenters() []float64 {
	c := make([]float64, r.YSize)
	for i, y := range r.YAxis {
		c[i] = y + r.YRes/2
	}
	return c
}

// SameGrid reports whether other covers the same pixel grid as r: equal size,
// equal EPSG code and a geotransform equal to within tol pixels.
func (r *Raster) SameGrid(other *Raster, tol float64) error {
	if r.XSize != other.XSize || r.YSize != other.YSize {
		return fmt.Errorf("size %dx%d vs %dx%d", r.XSize, r.YSize, other.XSize, other.YSize)
	}
	if r.EPSG != other.EPSG {
		return fmt.Errorf("crs EPSG:%d vs EPSG:%d", r.EPSG, other.EPSG)
	}
	px := math.Max(math.Abs(r.XRes), math.Abs(r.YRes))
	for i := range r.GeoTransform {
		if math.Abs(r.GeoTransform[i]-other.GeoTransform[i]) > tol*px {
			return fmt.Errorf("geotransform %v vs %v", r.GeoTransform, other.GeoTransform)
		}
	}
	return nil
}

// WriteOptions describe the grid of a raster written by Write.
type WriteOptions struct {
	XMin, YMax float64 // upper left corner
	PixelSize  float64 // defaults to DefaultPixelSize
	EPSG       int     // defaults to DefaultEPSG
	NoData     float64
	// NoDataSet must be true for NoData to be used; otherwise DefaultNoData is written.
	NoDataSet bool
}

// Write stores data (rows x cols, row-major) as a single-band Float32 GeoTIFF
// with a north-up geotransform (xmin, px, 0, ymax, 0, -px). NaN samples are
// written as the nodata value.
func Write(path string, data []float64, cols, rows int, opts WriteOptions) error {
	if opts.PixelSize == 0 {
		opts.PixelSize = DefaultPixelSize
	}
	if opts.EPSG == 0 {
		opts.EPSG = DefaultEPSG
	}
	if !opts.NoDataSet {
		opts.NoData = DefaultNoData
	}

	sr, err := godal.NewSpatialRefFromEPSG(opts.EPSG)
	if err != nil {
		return fmt.Errorf("EPSG:%d: %w", opts.EPSG, err)
	}
	defer sr.Close()

	gt := [6]float64{opts.XMin, opts.PixelSize, 0, opts.YMax, 0, -opts.PixelSize}
	return write(path, data, cols, rows, gt, opts.NoData, func(ds *godal.Dataset) error {
		return ds.SetSpatialRef(sr)
	})
}

// WriteLike stores data on the grid of ref, reusing its geotransform and projection.
func WriteLike(path string, data []float64, ref *Raster, nodata float64) error {
	return write(path, data, ref.XSize, ref.YSize, ref.GeoTransform, nodata, func(ds *godal.Dataset) error {
		if ref.Projection == "" {
			return nil
		}
		return ds.SetProjection(ref.Projection)
	})
}

func write(path string, data []float64, cols, rows int, gt [6]float64, nodata float64, setCRS func(*godal.Dataset) error) (err error) {
	if cols <= 0 || rows <= 0 {
		return ErrEmptyRaster
	}
	if len(data) != cols*rows {
		return fmt.Errorf("write %s: have %d samples, want %d", path, len(data), cols*rows)
	}
	Register()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, cols, rows,
		godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := ds.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	if err := setCRS(ds); err != nil {
		return fmt.Errorf("set crs: %w", err)
	}

	out := make([]float32, len(data))
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = float32(nodata)
			continue
		}
		out[i] = float32(v)
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(nodata); err != nil {
		return fmt.Errorf("set nodata: %w", err)
	}
	if err := band.Write(0, 0, out, cols, rows); err != nil {
		return fmt.Errorf("write band: %w", err)
	}
	return nil
}
