package util

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/twpayne/go-polyline"
)

const shortCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func IsURL(value string) bool {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}

func DecodePolyLines(shape string) ([][]float64, error) {
	decoded, _, err := polyline.DecodeCoords([]byte(shape))
	if err != nil {
		log.WithError(err).Error("error decoding polyline")
		return nil, fmt.Errorf("failed to decode polyline %w", err)
	}
	return decoded, nil
}

// EncodePolyline encodes [lat, lng] pairs with the standard 1e5 precision.
func EncodePolyline(coords [][]float64) string {
	return string(polyline.EncodeCoords(coords))
}

func GenerateShortCode(length int) string {
	return RandomString(length, shortCodeCharset)
}

// GenerateReportCode builds the human facing report code, WR-<base36 millis>-<5 chars>.
func GenerateReportCode(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper("WR-" + ts + "-" + GenerateShortCode(5))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
