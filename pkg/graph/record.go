package graph

import (
	"encoding/binary"
	"fmt"

	kbinary "github.com/kelindar/binary"
	"github.com/klauspost/compress/zstd"
	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
)

const segmentKeyPrefix = "seg:"

// segmentRecord. on-disk form of a WaySegment, geometry as a precision 6 polyline.
type segmentRecord struct {
	ID           int64
	StartNode    int64
	EndNode      int64
	Geometry     string
	RoadClass    uint8
	OneWay       uint8
	BikeForward  bool
	BikeBackward bool
	Walkway      bool
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

func segmentKey(id datastructure.SegmentID) []byte {
	key := make([]byte, len(segmentKeyPrefix)+8)
	copy(key, segmentKeyPrefix)
	binary.BigEndian.PutUint64(key[len(segmentKeyPrefix):], uint64(id))
	return key
}

func encodeSegment(s *datastructure.WaySegment) ([]byte, error) {
	attr := s.Attributes()
	rec := segmentRecord{
		ID:           int64(s.GetID()),
		StartNode:    int64(s.GetStartNode()),
		EndNode:      int64(s.GetEndNode()),
		Geometry:     geo.PrecisePolylineFromCoords(s.GetGeometry()),
		RoadClass:    uint8(attr.RoadClass),
		OneWay:       uint8(attr.OneWay),
		BikeForward:  attr.BikeForward,
		BikeBackward: attr.BikeBackward,
		Walkway:      attr.Walkway,
	}
	bb, err := kbinary.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode segment %d: %w", s.GetID(), err)
	}
	return encoder.EncodeAll(bb, make([]byte, 0, len(bb))), nil
}

// decodeSegment. a record with undecodable geometry yields a segment without geometry, which fails Validate.
func decodeSegment(bbCompressed []byte) (*datastructure.WaySegment, error) {
	bb, err := decoder.DecodeAll(bbCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress segment record: %w", err)
	}
	var rec segmentRecord
	if err := kbinary.Unmarshal(bb, &rec); err != nil {
		return nil, fmt.Errorf("decode segment record: %w", err)
	}

	coords, err := geo.CoordsFromPrecisePolyline(rec.Geometry)
	if err != nil {
		coords = nil
	}

	s := datastructure.NewWaySegment(datastructure.SegmentID(rec.ID), datastructure.NodeID(rec.StartNode),
		datastructure.NodeID(rec.EndNode), coords, datastructure.WaySegmentAttributes{
			RoadClass:    pkg.RoadClass(rec.RoadClass),
			OneWay:       datastructure.OneWay(rec.OneWay),
			BikeForward:  rec.BikeForward,
			BikeBackward: rec.BikeBackward,
			Walkway:      rec.Walkway,
		})
	return s, nil
}
