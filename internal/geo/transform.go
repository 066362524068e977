package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/ppiankov/rflocate/internal/model"
)

// Transform converts between geographic degrees and the local planar frame (km)
type Transform interface {
	Forward(lat, lon float64) (x, y float64)
	Inverse(x, y float64) (lat, lon float64)
}

// Equirectangular is a flat-earth projection about an origin, accurate for
// areas of a few hundred kilometres
type Equirectangular struct {
	origin   orb.Point // [lon, lat]
	kmPerLat float64
	kmPerLon float64
}

// NewEquirectangular creates a transform centred on (lat, lon)
func NewEquirectangular(lat, lon float64) *Equirectangular {
	kmPerLat := orb.EarthRadius * math.Pi / 180.0 / 1000.0
	return &Equirectangular{
		origin:   orb.Point{lon, lat},
		kmPerLat: kmPerLat,
		kmPerLon: kmPerLat * math.Cos(lat*math.Pi/180.0),
	}
}

// FromConfig creates a transform from the configured origin
func FromConfig(cfg model.OriginConfig) *Equirectangular {
	return NewEquirectangular(cfg.Lat, cfg.Lon)
}

// Origin returns the reference point as (lat, lon)
func (e *Equirectangular) Origin() (lat, lon float64) {
	return e.origin.Lat(), e.origin.Lon()
}

// Forward maps degrees to km east/north of the origin
func (e *Equirectangular) Forward(lat, lon float64) (x, y float64) {
	return (lon - e.origin.Lon()) * e.kmPerLon, (lat - e.origin.Lat()) * e.kmPerLat
}

// Inverse maps km east/north of the origin back to degrees
func (e *Equirectangular) Inverse(x, y float64) (lat, lon float64) {
	return e.origin.Lat() + y/e.kmPerLat, e.origin.Lon() + x/e.kmPerLon
}

// HaversineKm returns the great-circle distance between two points in km
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}) / 1000.0
}

// WithinRadius reports whether (lat, lon) lies within maxKm of the origin
func (e *Equirectangular) WithinRadius(lat, lon, maxKm float64) bool {
	return HaversineKm(e.origin.Lat(), e.origin.Lon(), lat, lon) <= maxKm
}

// AreaBounds returns the geographic bound of a square area of sizeKm centred on the origin
func (e *Equirectangular) AreaBounds(sizeKm float64) orb.Bound {
	half := sizeKm / 2
	swLat, swLon := e.Inverse(-half, -half)
	neLat, neLon := e.Inverse(half, half)
	return orb.Bound{
		Min: orb.Point{swLon, swLat},
		Max: orb.Point{neLon, neLat},
	}
}

// PlanarBounds converts configured bounds into an orb.Bound in km
func PlanarBounds(cfg model.BoundsConfig) orb.Bound {
	return orb.Bound{
		Min: orb.Point{cfg.MinX, cfg.MinY},
		Max: orb.Point{cfg.MaxX, cfg.MaxY},
	}
}

// ProjectReadings fills planar coordinates for readings that carry lat/lon.
// It returns a copy and reports whether every reading was geographic.
func ProjectReadings(t Transform, readings []model.StationReading) ([]model.StationReading, bool) {
	out := make([]model.StationReading, len(readings))
	allGeo := len(readings) > 0
	for i, r := range readings {
		if r.HasGeo() {
			r.X, r.Y = t.Forward(*r.Lat, *r.Lon)
		} else {
			allGeo = false
		}
		out[i] = r
	}
	return out, allGeo
}

// AnnotateReadings fills lat/lon for readings that only carry planar coordinates
func AnnotateReadings(t Transform, readings []model.StationReading) []model.StationReading {
	out := make([]model.StationReading, len(readings))
	for i, r := range readings {
		if !r.HasGeo() {
			lat, lon := t.Inverse(r.X, r.Y)
			r.Lat, r.Lon = &lat, &lon
		}
		out[i] = r
	}
	return out
}
