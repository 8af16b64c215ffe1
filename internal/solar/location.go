package solar

import "fmt"

// Location is a geographic coordinate used for solar calculations.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"lon"`
}

// CoordinateRangeError reports a latitude or longitude outside its valid range.
type CoordinateRangeError struct {
	Field string
	Value float64
}

func (e *CoordinateRangeError) Error() string {
	return fmt.Sprintf("%s %v is out of range", e.Field, e.Value)
}

// Validate checks that the coordinate is within [-90,90] x [-180,180].
func (l Location) Validate() error {
	if err := validateCoordinates(l.Latitude, l.Longitude); err != nil {
		return err
	}
	return nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return &CoordinateRangeError{Field: "latitude", Value: lat}
	}
	if lng < -180 || lng > 180 {
		return &CoordinateRangeError{Field: "longitude", Value: lng}
	}
	return nil
}
