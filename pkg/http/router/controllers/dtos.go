package controllers

import (
	"math"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/engine"
)

type trackPoint struct {
	Lat     float64    `json:"lat" validate:"min=-90,max=90"`
	Lon     float64    `json:"lon" validate:"min=-180,max=180"`
	Time    *time.Time `json:"time,omitempty"`
	Speed   *float64   `json:"speed,omitempty" validate:"omitempty,min=0"`
	Heading *float64   `json:"heading,omitempty" validate:"omitempty,min=0,lt=360"`
}

func (p trackPoint) toPoint() datastructure.Point {
	var t time.Time
	if p.Time != nil {
		t = *p.Time
	}
	speed, heading := math.NaN(), math.NaN()
	if p.Speed != nil {
		speed = *p.Speed
	}
	if p.Heading != nil {
		heading = *p.Heading
	}
	return datastructure.NewPointWithMotion(p.Lat, p.Lon, t, speed, heading)
}

type matchTrackRequest struct {
	Graph  string       `json:"graph" validate:"required"`
	Mode   string       `json:"mode" validate:"required"`
	Points []trackPoint `json:"points" validate:"required,min=1,dive"`
	// TimeoutMs. 0 = server default.
	TimeoutMs     int64      `json:"timeout_ms" validate:"min=0"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	MaxResults    int        `json:"max_results" validate:"min=0,max=50"`
}

func (r matchTrackRequest) toMatchRequest() (engine.MatchRequest, error) {
	points := make([]datastructure.Point, len(r.Points))
	for i, p := range r.Points {
		points[i] = p.toPoint()
	}
	track, err := datastructure.NewTrack(points)
	if err != nil {
		return engine.MatchRequest{}, err
	}
	req := engine.MatchRequest{
		Track:      track,
		GraphName:  r.Graph,
		Mode:       r.Mode,
		Timeout:    time.Duration(r.TimeoutMs) * time.Millisecond,
		MaxResults: r.MaxResults,
	}
	if r.ReferenceTime != nil {
		req.ReferenceTime = *r.ReferenceTime
	}
	return req, nil
}

type matchTracksRequest struct {
	Tracks []matchTrackRequest `json:"tracks" validate:"required,min=1,dive"`
}

type matchedSegmentResponse struct {
	SegmentID int64     `json:"segment_id"`
	Direction string    `json:"direction"`
	RoadClass string    `json:"road_class"`
	Points    []int     `json:"points"`
	Distances []float64 `json:"distances"`
}

type branchResponse struct {
	Factor        float64                  `json:"factor"`
	Cost          float64                  `json:"cost"`
	MatchedPoints int                      `json:"matched_points"`
	Unmatched     []int                    `json:"unmatched"`
	Path          string                   `json:"path"`
	Segments      []matchedSegmentResponse `json:"segments"`
}

type matchTrackResponse struct {
	TaskID     string           `json:"task_id"`
	Graph      string           `json:"graph"`
	Mode       string           `json:"mode"`
	NoMatch    bool             `json:"no_match"`
	Branches   []branchResponse `json:"branches"`
	Warnings   []string         `json:"warnings"`
	DurationMs float64          `json:"duration_ms"`
}

func NewMatchTrackResponse(res *engine.MatchResult) matchTrackResponse {
	branches := make([]branchResponse, 0, len(res.Branches))
	for _, b := range res.Branches {
		segs := make([]matchedSegmentResponse, 0, len(b.GetSegments()))
		for _, s := range b.GetSegments() {
			segs = append(segs, matchedSegmentResponse{
				SegmentID: int64(s.GetSegment().GetID()),
				Direction: s.GetDirection().String(),
				RoadClass: s.GetSegment().GetRoadClass().String(),
				Points:    nonNilInts(s.GetPoints()),
				Distances: nonNilFloats(s.GetDistances()),
			})
		}
		branches = append(branches, branchResponse{
			Factor:        b.GetFactor(),
			Cost:          b.GetCost(),
			MatchedPoints: b.GetMatchedPoints(),
			Unmatched:     nonNilInts(b.GetUnmatched()),
			Path:          b.GetPolyline(),
			Segments:      segs,
		})
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return matchTrackResponse{
		TaskID:     res.TaskID,
		Graph:      res.GraphName,
		Mode:       res.Mode.String(),
		NoMatch:    res.NoMatch(),
		Branches:   branches,
		Warnings:   warnings,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
}

// batchItemResponse. either Result or Error is set.
type batchItemResponse struct {
	Result *matchTrackResponse `json:"result,omitempty"`
	Error  *errorBody          `json:"error,omitempty"`
}

type graphsResponse struct {
	Graphs []string `json:"graphs"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func nonNilInts(a []int) []int {
	if a == nil {
		return []int{}
	}
	return a
}

func nonNilFloats(a []float64) []float64 {
	if a == nil {
		return []float64{}
	}
	return a
}
