package geotiff

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// wgs84 is given as a proj string so that longitude always comes first,
// whatever axis order GDAL assigns to EPSG:4326.
const wgs84 = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// ReadOutlines returns the rings and line strings of every feature in the vector
// file at path (shapefile, GeoJSON or any other OGR format), reprojected to dstEPSG.
// Layers without a CRS are assumed to be in dstEPSG already.
func ReadOutlines(path string, dstEPSG int) ([]orb.Ring, error) {
	Register()

	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		return nil, fmt.Errorf("EPSG:%d: %w", dstEPSG, err)
	}
	defer dst.Close()

	var rings []orb.Ring
	for _, layer := range ds.Layers() {
		reproject := hasCRS(layer)
		layer.ResetReading()
		for {
			feat := layer.NextFeature()
			if feat == nil {
				break
			}
			r, err := featureRings(feat, dst, reproject)
			feat.Close()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			rings = append(rings, r...)
		}
	}
	return rings, nil
}

// hasCRS reports whether layer carries a spatial reference. godal wraps the
// handle even when OGR returns none, so the WKT is checked instead.
func hasCRS(layer godal.Layer) bool {
	wkt, err := layer.SpatialRef().WKT()
	return err == nil && wkt != ""
}

func featureRings(feat *godal.Feature, dst *godal.SpatialRef, reproject bool) ([]orb.Ring, error) {
	g := feat.Geometry()
	if g == nil {
		return nil, nil
	}
	defer g.Close()

	if reproject {
		if err := g.Reproject(dst); err != nil {
			return nil, fmt.Errorf("reproject geometry: %w", err)
		}
	}
	js, err := g.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("export geometry: %w", err)
	}
	geom, err := geojson.UnmarshalGeometry([]byte(js))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return ringsOf(geom.Geometry()), nil
}

func ringsOf(g orb.Geometry) []orb.Ring {
	switch g := g.(type) {
	case orb.Ring:
		return []orb.Ring{g}
	case orb.Polygon:
		return append([]orb.Ring(nil), g...)
	case orb.MultiPolygon:
		var out []orb.Ring
		for _, p := range g {
			out = append(out, p...)
		}
		return out
	case orb.LineString:
		return []orb.Ring{orb.Ring(g)}
	case orb.MultiLineString:
		out := make([]orb.Ring, 0, len(g))
		for _, ls := range g {
			out = append(out, orb.Ring(ls))
		}
		return out
	case orb.Collection:
		var out []orb.Ring
		for _, c := range g {
			out = append(out, ringsOf(c)...)
		}
		return out
	}
	return nil
}

// Projector transforms geographic coordinates (degrees) to a projected CRS.
type Projector struct {
	src, dst *godal.SpatialRef
	trn      *godal.Transform
}

// NewProjector returns a lon/lat to dstEPSG projector. Close releases it.
func NewProjector(dstEPSG int) (*Projector, error) {
	Register()

	src, err := godal.NewSpatialRefFromProj4(wgs84)
	if err != nil {
		return nil, fmt.Errorf("wgs84: %w", err)
	}
	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("EPSG:%d: %w", dstEPSG, err)
	}
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, fmt.Errorf("transform to EPSG:%d: %w", dstEPSG, err)
	}
	return &Projector{src: src, dst: dst, trn: trn}, nil
}

// Forward projects the given longitudes and latitudes. The inputs are not modified.
func (p *Projector) Forward(lon, lat []float64) (x, y []float64, err error) {
	if len(lon) != len(lat) {
		return nil, nil, fmt.Errorf("have %d longitudes and %d latitudes", len(lon), len(lat))
	}
	x = append([]float64(nil), lon...)
	y = append([]float64(nil), lat...)
	ok := make([]bool, len(x))
	if err := p.trn.TransformEx(x, y, nil, ok); err != nil {
		return nil, nil, err
	}
	for i, good := range ok {
		if !good {
			return nil, nil, fmt.Errorf("point (%g, %g) cannot be projected", lon[i], lat[i])
		}
	}
	return x, y, nil
}

// Close releases the GDAL objects held by p.
func (p *Projector) Close() {
	p.trn.Close()
	p.dst.Close()
	p.src.Close()
}
