package heatmap

import (
	"sort"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

const (
	expectedCells = 160
	minLevel      = 6
	maxLevel      = 16
)

// Weight is the estimated volume when waste was detected, 1 when the area is known
// but the volume rounds to zero, and 0.1 when nothing was detected.
func Weight(d model.Detection) float64 {
	if d.TotalWasteArea <= 0 {
		return 0.1
	}
	if d.EstimatedVolume > 0 {
		return d.EstimatedVolume
	}
	return 1
}

func Intensity(severity string) float64 {
	switch severity {
	case values.SeverityLow:
		return 0.3
	case values.SeverityMedium:
		return 0.6
	case values.SeverityHigh:
		return 0.8
	case values.SeverityCritical:
		return 1.0
	default:
		return 0.5
	}
}

// CellLevel picks the s2 level at which roughly expectedCells cells cover the bounds.
func CellLevel(b model.Bounds) int {
	sw := s2.LatLngFromDegrees(b.SouthWestLat, b.SouthWestLng)
	ne := s2.LatLngFromDegrees(b.NorthEastLat, b.NorthEastLng)
	rect := s2.Rect{
		Lat: r1.Interval{Lo: sw.Lat.Radians(), Hi: ne.Lat.Radians()},
		Lng: s1.IntervalFromEndpoints(sw.Lng.Radians(), ne.Lng.Radians()),
	}
	area := rect.Area()

	center := s2.CellIDFromLatLng(rect.Center())
	for lv := maxLevel; lv >= minLevel; lv-- {
		cell := s2.CellFromCellID(center.Parent(lv))
		if area/cell.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel
}

type bucket struct {
	count     int
	weight    float64
	intensity float64
	latSum    float64
	lngSum    float64
}

// Aggregate bins points into s2 cells of the given level. Each output point sits at the
// mean position of its members, carries the summed weight and the maximum intensity.
func Aggregate(points []model.HeatmapPoint, level int) []model.HeatmapPoint {
	buckets := make(map[s2.CellID]*bucket)
	for _, p := range points {
		id := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Latitude, p.Longitude)).Parent(level)
		b := buckets[id]
		if b == nil {
			b = &bucket{}
			buckets[id] = b
		}
		b.count++
		b.weight += p.Weight
		b.latSum += p.Latitude
		b.lngSum += p.Longitude
		if p.Intensity > b.intensity {
			b.intensity = p.Intensity
		}
	}

	out := make([]model.HeatmapPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, model.HeatmapPoint{
			Latitude:  b.latSum / float64(b.count),
			Longitude: b.lngSum / float64(b.count),
			Weight:    b.weight,
			Intensity: b.intensity,
			Count:     b.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// FeatureCollection renders points as GeoJSON for map clients.
func FeatureCollection(points []model.HeatmapPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewPointFeature([]float64{p.Longitude, p.Latitude})
		f.SetProperty("weight", p.Weight)
		f.SetProperty("intensity", p.Intensity)
		if p.Count > 0 {
			f.SetProperty("count", p.Count)
		}
		if p.ReportCode != "" {
			f.SetProperty("report_code", p.ReportCode)
			f.SetProperty("priority", p.Priority)
			f.SetProperty("status", p.Status)
			f.SetProperty("severity", p.Severity)
		}
		if p.ReportID != nil {
			f.ID = p.ReportID.String()
		}
		fc.AddFeature(f)
	}
	return fc
}
