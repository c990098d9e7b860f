package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

type jsonPoint struct {
	Lat     float64    `json:"lat"`
	Lon     float64    `json:"lon"`
	Time    *time.Time `json:"time,omitempty"`
	Speed   *float64   `json:"speed,omitempty"`
	Heading *float64   `json:"heading,omitempty"`
}

// readTrackFile. json array of points for .json files, csv (lat,lon[,time[,speed[,heading]]]) otherwise.
func readTrackFile(path string) (*datastructure.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readJSONTrack(f)
	}
	return readCSVTrack(f)
}

func readJSONTrack(r io.Reader) (*datastructure.Track, error) {
	var raw []jsonPoint
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding track: %w", err)
	}
	points := make([]datastructure.Point, len(raw))
	for i, p := range raw {
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
		points[i] = datastructure.NewPointWithMotion(p.Lat, p.Lon, t, speed, heading)
	}
	return datastructure.NewTrack(points)
}

// readCSVTrack. a first row that does not start with a number is a header.
func readCSVTrack(r io.Reader) (*datastructure.Track, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	points := make([]datastructure.Point, 0)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: need at least lat,lon", line)
		}
		lat, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid lat %q", line, rec[0])
		}
		lon, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lon %q", line, rec[1])
		}
		var t time.Time
		if len(rec) > 2 && rec[2] != "" {
			t, err = parseTimestamp(rec[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		speed, heading := math.NaN(), math.NaN()
		if len(rec) > 3 && rec[3] != "" {
			if speed, err = strconv.ParseFloat(rec[3], 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid speed %q", line, rec[3])
			}
		}
		if len(rec) > 4 && rec[4] != "" {
			if heading, err = strconv.ParseFloat(rec[4], 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid heading %q", line, rec[4])
			}
		}
		points = append(points, datastructure.NewPointWithMotion(lat, lon, t, speed, heading))
	}
	return datastructure.NewTrack(points)
}

// parseTimestamp. RFC3339 or unix seconds.
func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}
