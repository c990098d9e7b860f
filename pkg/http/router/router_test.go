package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/engine"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	http_server "github.com/lintang-b-s/waymatcher/pkg/http/server"
	"github.com/lintang-b-s/waymatcher/pkg/http/usecases"
	"github.com/lintang-b-s/waymatcher/pkg/metrics"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lineStore. three two-way residential segments along the equator, ~111 m each.
func lineStore() *graph.MemoryStore {
	attr := datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL}
	segments := make([]*datastructure.WaySegment, 0, 3)
	for i := int64(0); i < 3; i++ {
		lon := float64(i) * 0.001
		segments = append(segments, datastructure.NewWaySegment(datastructure.SegmentID(i+1),
			datastructure.NodeID(i+1), datastructure.NodeID(i+2),
			[]geo.Coordinate{geo.NewCoordinate(0, lon), geo.NewCoordinate(0, lon+0.001)}, attr))
	}
	return graph.NewMemoryStore(segments, zap.NewNop())
}

func newTestServer(t *testing.T, cfg http_server.Config, useRateLimit bool) (http.Handler, *prometheus.Registry) {
	t.Helper()
	_, h, promReg := newTestAPI(t, cfg, useRateLimit)
	return h, promReg
}

func newTestAPI(t *testing.T, cfg http_server.Config, useRateLimit bool) (*API, http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := graph.NewRegistry()
	reg.Register("line", lineStore())
	promReg := prometheus.NewRegistry()
	m := metrics.NewMetrics(promReg)
	eng, err := engine.NewEngine(reg, nil, util.MatcherConfig{
		SnapRadius: 30, BeamWidth: 16, MaxSkipSegments: 8, MaxSkipDistance: 500, MaxConsecutiveUnmatched: 3,
		MergeCostTolerance: 5, DuplicatePointEpsilon: 0.5, OffsetBacktrackTolerance: 5, MaxResults: 3,
		MatchTimeout: 5 * time.Second, Workers: 2,
	}, m, zap.NewNop())
	require.NoError(t, err)

	svc := usecases.NewMatchingService(zap.NewNop(), eng, 4)
	api, err := NewAPI(zap.NewNop(), m, promReg)
	require.NoError(t, err)
	return api, api.Handler(cfg, useRateLimit, svc, 2), promReg
}

const goodTrack = `{"graph":"line","mode":"car","points":[
	{"lat":0.00001,"lon":0.0003,"time":"2024-05-01T07:30:00Z"},
	{"lat":-0.00001,"lon":0.0012,"time":"2024-05-01T07:30:10Z"},
	{"lat":0.00002,"lon":0.0024,"time":"2024-05-01T07:30:20Z"}]}`

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMatchTrackEndpoint(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)

	rec := post(t, h, "/api/matchTrack", goodTrack)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			TaskID   string `json:"task_id"`
			Mode     string `json:"mode"`
			NoMatch  bool   `json:"no_match"`
			Branches []struct {
				Factor        float64 `json:"factor"`
				MatchedPoints int     `json:"matched_points"`
				Path          string  `json:"path"`
				Segments      []struct {
					SegmentID int64  `json:"segment_id"`
					Direction string `json:"direction"`
					Points    []int  `json:"points"`
				} `json:"segments"`
			} `json:"branches"`
			Warnings []string `json:"warnings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.TaskID)
	assert.Equal(t, "car", resp.Data.Mode)
	assert.False(t, resp.Data.NoMatch)
	require.NotEmpty(t, resp.Data.Branches)
	best := resp.Data.Branches[0]
	assert.Equal(t, 3, best.MatchedPoints)
	assert.NotEmpty(t, best.Path)
	require.Len(t, best.Segments, 3)
	assert.Equal(t, int64(1), best.Segments[0].SegmentID)
	assert.Equal(t, "forward", best.Segments[0].Direction)
	assert.NotNil(t, resp.Data.Warnings)
}

func TestMatchTrackErrors(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)

	testCases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown graph",
			body:       strings.Replace(goodTrack, `"graph":"line"`, `"graph":"nowhere"`, 1),
			wantStatus: http.StatusNotFound,
			wantCode:   "GraphNotFound",
		},
		{
			name:       "unknown mode",
			body:       strings.Replace(goodTrack, `"mode":"car"`, `"mode":"tram"`, 1),
			wantStatus: http.StatusBadRequest,
			wantCode:   "InvalidRoutingParameter",
		},
		{
			name:       "latitude out of range",
			body:       `{"graph":"line","mode":"car","points":[{"lat":91,"lon":0}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "Bad Request",
		},
		{
			name:       "no points",
			body:       `{"graph":"line","mode":"car","points":[]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "Bad Request",
		},
		{
			name: "timestamps going back",
			body: `{"graph":"line","mode":"car","points":[
				{"lat":0,"lon":0.0003,"time":"2024-05-01T07:30:10Z"},
				{"lat":0,"lon":0.0012,"time":"2024-05-01T07:30:00Z"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "Bad Request",
		},
		{
			name:       "malformed json",
			body:       `{"graph":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "Bad Request",
		},
		{
			name:       "unknown field",
			body:       `{"graph":"line","mode":"car","points":[{"lat":0,"lon":0}],"beam":3}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "Bad Request",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(t, h, "/api/matchTrack", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestMatchTracksEndpoint(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)

	body := `{"tracks":[` + goodTrack + `,` +
		strings.Replace(goodTrack, `"graph":"line"`, `"graph":"nowhere"`, 1) + `]}`
	rec := post(t, h, "/api/matchTracks", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []struct {
			Result *struct {
				Branches []json.RawMessage `json:"branches"`
			} `json:"result"`
			Error *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Data[0].Result)
	assert.Nil(t, resp.Data[0].Error)
	assert.NotEmpty(t, resp.Data[0].Result.Branches)
	assert.Nil(t, resp.Data[1].Result)
	require.NotNil(t, resp.Data[1].Error)
	assert.Equal(t, "GraphNotFound", resp.Data[1].Error.Code)

	tooMany := `{"tracks":[` + strings.Repeat(goodTrack+",", 4) + goodTrack + `]}`
	rec = post(t, h, "/api/matchTracks", tooMany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphsHealthAndMetrics(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graphs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"graphs":["line"]}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	post(t, h, "/api/matchTrack", goodTrack)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `waymatcher_match_tasks_total{outcome="ok"} 1`)
	assert.Contains(t, body, `waymatcher_http_requests_total{code="200",method="GET",route="/api/graphs"} 1`)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{RateLimit: 0.001, RateBurst: 2}, true)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/graphs", nil)
		req.Header.Set("X-Forwarded-For", "10.1.2.3")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// other clients keep their own budget
	req := httptest.NewRequest(http.MethodGet, "/api/graphs", nil)
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnforceJSON(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)
	req := httptest.NewRequest(http.MethodPost, "/api/matchTrack", bytes.NewBufferString("lat=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestWebsocketMatchStream(t *testing.T) {
	h, _ := newTestServer(t, http_server.Config{}, false)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	defer conn.Close()

	frames := []string{
		`{"request_id":"a",` + strings.TrimPrefix(goodTrack, "{"),
		`{"request_id":"b","graph":"nowhere","mode":"car","points":[{"lat":0,"lon":0.0003}]}`,
		`not json`,
	}
	type frame struct {
		RequestID string `json:"request_id"`
		Data      *struct {
			Branches []json.RawMessage `json:"branches"`
		} `json:"data"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	got := make([]frame, 0, len(frames))
	for _, f := range frames {
		require.NoError(t, wsutil.WriteClientText(conn, []byte(f)))
		msg, err := wsutil.ReadServerText(conn)
		require.NoError(t, err)
		var fr frame
		require.NoError(t, json.Unmarshal(msg, &fr))
		got = append(got, fr)
	}

	assert.Equal(t, "a", got[0].RequestID)
	require.NotNil(t, got[0].Data)
	assert.NotEmpty(t, got[0].Data.Branches)

	assert.Equal(t, "b", got[1].RequestID)
	require.NotNil(t, got[1].Error)
	assert.Equal(t, "GraphNotFound", got[1].Error.Code)

	require.NotNil(t, got[2].Error)
	assert.Equal(t, "Bad Request", got[2].Error.Code)
}

func TestWebsocketPipelinedFramesAndLeave(t *testing.T) {
	api, h, _ := newTestAPI(t, http_server.Config{}, false)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)

	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		frame := `{"request_id":"` + id + `",` + strings.TrimPrefix(goodTrack, "{")
		require.NoError(t, wsutil.WriteClientText(conn, []byte(frame)))
	}

	for _, id := range ids {
		msg, err := wsutil.ReadServerText(conn)
		require.NoError(t, err)
		var fr struct {
			RequestID string          `json:"request_id"`
			Data      json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &fr))
		assert.Equal(t, id, fr.RequestID)
		assert.NotEmpty(t, fr.Data)
	}
	assert.Equal(t, 1, api.hub.Len())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
