package geo

import (
	"github.com/twpayne/go-polyline"
)

// storage precision, 1e-6 degree (~11cm)
var precisionCodec = polyline.Codec{Dim: 2, Scale: 1e6}

// PoylineFromCoords. encode coords with the google polyline algorithm (precision 5).
func PoylineFromCoords(path []Coordinate) string {
	return string(polyline.EncodeCoords(toPairs(path)))
}

// PrecisePolylineFromCoords. same as PoylineFromCoords with precision 6.
func PrecisePolylineFromCoords(path []Coordinate) string {
	return string(precisionCodec.EncodeCoords(nil, toPairs(path)))
}

// CoordsFromPolyline. decode a precision 5 polyline, trailing bytes are an error.
func CoordsFromPolyline(encoded string) ([]Coordinate, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	return fromPairs(coords, rest, err)
}

// CoordsFromPrecisePolyline. decode a precision 6 polyline.
func CoordsFromPrecisePolyline(encoded string) ([]Coordinate, error) {
	coords, rest, err := precisionCodec.DecodeCoords([]byte(encoded))
	return fromPairs(coords, rest, err)
}

func toPairs(path []Coordinate) [][]float64 {
	coords := make([][]float64, 0, len(path))
	for _, c := range path {
		coords = append(coords, []float64{c.Lat, c.Lon})
	}
	return coords
}

func fromPairs(coords [][]float64, rest []byte, err error) ([]Coordinate, error) {
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, polyline.ErrInvalidByte
	}
	path := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		path = append(path, NewCoordinate(c[0], c[1]))
	}
	return path, nil
}
