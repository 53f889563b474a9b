package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docfinder/internal/domain"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ParsePos parses a "lon lat" pair as returned by geocoders.
func ParsePos(pos string) (Point, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("%w: bad position %q", domain.ErrGeocode, pos)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: bad longitude %q", domain.ErrGeocode, fields[0])
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: bad latitude %q", domain.ErrGeocode, fields[1])
	}
	if !ValidateCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("%w: coordinates out of range %q", domain.ErrGeocode, pos)
	}
	return Point{Lon: lon, Lat: lat}, nil
}

// String formats the point as "lon,lat", the order map APIs expect.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// Result is the outcome of a geocode lookup: either a point or an error.
type Result struct {
	point Point
	err   error
	found bool
}

// Found creates a successful result.
func Found(p Point) Result { return Result{point: p, found: true} }

// Failed creates a failed result.
func Failed(err error) Result { return Result{err: err} }

// Skipped is the result when geocoding was not attempted.
func Skipped() Result { return Result{} }

// Point returns the coordinates and whether the lookup succeeded.
func (r Result) Point() (Point, bool) { return r.point, r.found }

// Found reports whether the lookup succeeded.
func (r Result) Found() bool { return r.found }

// Err returns the failure, nil for found or skipped results.
func (r Result) Err() error { return r.err }
