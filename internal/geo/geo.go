package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in metres.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// ParseBounds parses "swLat,swLng,neLat,neLng".
func ParseBounds(raw string) (*model.Bounds, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errors.New("bounds must be swLat,swLng,neLat,neLng")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bounds value %d", i)
		}
		v[i] = f
	}

	b := &model.Bounds{SouthWestLat: v[0], SouthWestLng: v[1], NorthEastLat: v[2], NorthEastLng: v[3]}
	if b.SouthWestLat < -90 || b.NorthEastLat > 90 || b.SouthWestLat > b.NorthEastLat {
		return nil, errors.New("bounds latitudes out of range")
	}
	if b.SouthWestLng < -180 || b.NorthEastLng > 180 {
		return nil, errors.New("bounds longitudes out of range")
	}
	return b, nil
}

// Contains reports whether the point lies inside b. Bounds crossing the antimeridian are honoured.
func Contains(b model.Bounds, lat, lng float64) bool {
	if lat < b.SouthWestLat || lat > b.NorthEastLat {
		return false
	}
	if b.SouthWestLng <= b.NorthEastLng {
		return lng >= b.SouthWestLng && lng <= b.NorthEastLng
	}
	return lng >= b.SouthWestLng || lng <= b.NorthEastLng
}

// Polygon is a boundary ring usable for containment checks.
type Polygon struct {
	loop *s2.Loop
}

// ParsePolygon reads the outer ring of a GeoJSON Polygon geometry.
func ParsePolygon(raw []byte) (*Polygon, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode boundary")
	}
	if !g.IsPolygon() || len(g.Polygon) == 0 {
		return nil, errors.New("boundary must be a GeoJSON Polygon")
	}

	ring := g.Polygon[0]
	if n := len(ring); n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return nil, errors.New("boundary needs at least three distinct points")
	}

	points := make([]s2.Point, 0, len(ring))
	for _, c := range ring {
		if len(c) < 2 {
			return nil, errors.New("boundary position needs longitude and latitude")
		}
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(c[1], c[0])))
	}

	loop := s2.LoopFromPoints(points)
	// rings wound clockwise describe the complement; flip them so the loop covers the smaller area
	if loop.Area() > 2*math.Pi {
		loop.Invert()
	}
	return &Polygon{loop: loop}, nil
}

func (p *Polygon) Contains(lat, lng float64) bool {
	return p.loop.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng)))
}

type Point struct {
	Lat float64
	Lng float64
}

// NearestNeighbourOrder returns the indexes of points visited greedily from start.
func NearestNeighbourOrder(start Point, points []Point) ([]int, float64) {
	visited := make([]bool, len(points))
	order := make([]int, 0, len(points))
	total := 0.0
	cur := start

	for len(order) < len(points) {
		best, bestDist := -1, math.MaxFloat64
		for i, p := range points {
			if visited[i] {
				continue
			}
			if d := Distance(cur.Lat, cur.Lng, p.Lat, p.Lng); d < bestDist {
				best, bestDist = i, d
			}
		}
		visited[best] = true
		order = append(order, best)
		total += bestDist
		cur = points[best]
	}
	return order, total
}
