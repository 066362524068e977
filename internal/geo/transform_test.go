package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ppiankov/rflocate/internal/model"
)

func TestEquirectangularRoundTrip(t *testing.T) {
	tr := NewEquirectangular(39.9042, 116.4074)

	points := [][2]float64{
		{39.9042, 116.4074},
		{40.3, 116.9},
		{39.5, 115.8},
		{40.62, 117.45},
	}
	for _, p := range points {
		x, y := tr.Forward(p[0], p[1])
		lat, lon := tr.Inverse(x, y)
		if math.Abs(lat-p[0]) > 1e-6 || math.Abs(lon-p[1]) > 1e-6 {
			t.Errorf("expected round trip to (%v, %v), got (%v, %v)", p[0], p[1], lat, lon)
		}
	}
}

func TestEquirectangularScale(t *testing.T) {
	tr := NewEquirectangular(0, 0)

	// One degree of latitude is about 111.32 km on the WGS84 equatorial radius
	_, y := tr.Forward(1, 0)
	if math.Abs(y-111.3195) > 0.001 {
		t.Errorf("expected ~111.32 km per degree, got %v", y)
	}

	// Planar distance agrees with haversine for short hops
	x, y := tr.Forward(0.3, 0.4)
	planar := math.Hypot(x, y)
	great := HaversineKm(0, 0, 0.3, 0.4)
	if math.Abs(planar-great) > 0.05 {
		t.Errorf("expected planar %v close to haversine %v", planar, great)
	}
}

func TestOriginMapsToZero(t *testing.T) {
	tr := FromConfig(model.DefaultConfig().Origin)
	lat, lon := tr.Origin()
	x, y := tr.Forward(lat, lon)
	if x != 0 || y != 0 {
		t.Errorf("expected origin at (0, 0), got (%v, %v)", x, y)
	}
	if !tr.WithinRadius(lat+0.1, lon, 20) {
		t.Error("expected point 11 km away to be within 20 km")
	}
	if tr.WithinRadius(lat+1, lon, 20) {
		t.Error("expected point 111 km away to be outside 20 km")
	}
}

func TestAreaBounds(t *testing.T) {
	tr := NewEquirectangular(39.9042, 116.4074)
	b := tr.AreaBounds(100)

	lat, lon := tr.Origin()
	if !b.Contains(orb.Point{lon, lat}) {
		t.Error("expected area bounds to contain the origin")
	}
	swX, swY := tr.Forward(b.Min.Lat(), b.Min.Lon())
	if math.Abs(swX+50) > 1e-6 || math.Abs(swY+50) > 1e-6 {
		t.Errorf("expected south-west corner at (-50, -50), got (%v, %v)", swX, swY)
	}
}

func TestProjectAndAnnotateReadings(t *testing.T) {
	tr := NewEquirectangular(39.9042, 116.4074)
	lat, lon := 40.0, 116.5

	readings := []model.StationReading{
		{StationID: 1, Lat: &lat, Lon: &lon, Power: 60},
		{StationID: 2, X: 5, Y: -5, Power: 58},
	}

	projected, allGeo := ProjectReadings(tr, readings)
	if allGeo {
		t.Error("expected mixed readings not to be all geographic")
	}
	wantX, wantY := tr.Forward(lat, lon)
	if projected[0].X != wantX || projected[0].Y != wantY {
		t.Errorf("expected projected (%v, %v), got (%v, %v)", wantX, wantY, projected[0].X, projected[0].Y)
	}
	if readings[0].X != 0 {
		t.Error("expected input slice to be left untouched")
	}

	annotated := AnnotateReadings(tr, projected)
	if !annotated[1].HasGeo() {
		t.Fatal("expected planar reading to gain lat/lon")
	}
	x, y := tr.Forward(*annotated[1].Lat, *annotated[1].Lon)
	if math.Abs(x-5) > 1e-9 || math.Abs(y+5) > 1e-9 {
		t.Errorf("expected annotation to invert to (5, -5), got (%v, %v)", x, y)
	}
}
