package geo

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/docfinder/internal/domain"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{54.51, 36.26, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.1, false},
	}
	for _, tc := range tests {
		if got := ValidateCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("ValidateCoordinates(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

func TestParsePos(t *testing.T) {
	p, err := ParsePos("36.261215 54.513845")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lon != 36.261215 || p.Lat != 54.513845 {
		t.Errorf("unexpected point %+v", p)
	}
	if p.String() != "36.261215,54.513845" {
		t.Errorf("unexpected string %q", p.String())
	}
}

func TestParsePos_Invalid(t *testing.T) {
	for _, in := range []string{"", "36.2", "a b", "36.2 x", "200 10"} {
		if _, err := ParsePos(in); !errors.Is(err, domain.ErrGeocode) {
			t.Errorf("ParsePos(%q): expected ErrGeocode, got %v", in, err)
		}
	}
}

func TestResult(t *testing.T) {
	if _, ok := Skipped().Point(); ok {
		t.Error("skipped result must not be found")
	}
	r := Failed(domain.ErrGeocode)
	if r.Found() || !errors.Is(r.Err(), domain.ErrGeocode) {
		t.Errorf("unexpected failed result %+v", r)
	}
	p, ok := Found(Point{Lon: 1, Lat: 2}).Point()
	if !ok || p.Lat != 2 {
		t.Errorf("unexpected found result %+v", p)
	}
}
