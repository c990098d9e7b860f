package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sort"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// wsMatchRequest. one text frame, RequestID is echoed back so clients can pipeline.
type wsMatchRequest struct {
	RequestID string `json:"request_id"`
	matchTrackRequest
}

type wsMatchResponse struct {
	RequestID string              `json:"request_id,omitempty"`
	Data      *matchTrackResponse `json:"data,omitempty"`
	Error     *errorBody          `json:"error,omitempty"`
}

type User struct {
	io   sync.Mutex
	conn io.ReadWriteCloser

	id      uint
	hub     *Hub
	release func()
}

// readRequest. nil request for control frames.
func (u *User) readRequest() (*wsMatchRequest, error) {
	u.io.Lock()
	defer u.io.Unlock()

	h, r, err := wsutil.NextReader(u.conn, ws.StateServerSide)
	if err != nil {
		return nil, err
	}
	if h.OpCode.IsControl() {
		return nil, wsutil.ControlFrameHandler(u.conn, ws.StateServerSide)(h, r)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	req := &wsMatchRequest{}
	if err := json.Unmarshal(payload, req); err != nil {
		return req, util.WrapErrorf(err, util.ErrBadParamInput, "invalid request frame: %v", err)
	}
	return req, nil
}

// MatchNext. read one request frame and answer it. only connection errors are returned,
// bad requests and task failures are answered with an error frame.
func (u *User) MatchNext(ctx context.Context) error {
	req, err := u.readRequest()
	if req == nil {
		return err
	}
	if err != nil {
		return u.write(wsMatchResponse{RequestID: req.RequestID, Error: newErrorBody(err)})
	}
	if err := u.hub.validate.Struct(req.matchTrackRequest); err != nil {
		return u.write(wsMatchResponse{RequestID: req.RequestID, Error: newErrorBody(err)})
	}
	mreq, err := req.toMatchRequest()
	if err != nil {
		return u.write(wsMatchResponse{RequestID: req.RequestID, Error: newErrorBody(trackError(err))})
	}

	if err := u.hub.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	res, err := u.hub.matchingService.MatchTrack(ctx, mreq)
	u.hub.sem.Release(1)
	if err != nil {
		return u.write(wsMatchResponse{RequestID: req.RequestID, Error: newErrorBody(err)})
	}

	resp := NewMatchTrackResponse(res)
	return u.write(wsMatchResponse{RequestID: req.RequestID, Data: &resp})
}

func (u *User) write(x interface{}) error {
	w := wsutil.NewWriter(u.conn, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	u.io.Lock()
	defer u.io.Unlock()

	if err := encoder.Encode(x); err != nil {
		return err
	}

	return w.Flush()
}

// Hub. open websocket connections. at most maxConcurrent match tasks run for websocket clients at once.
type Hub struct {
	mu              sync.RWMutex
	seq             uint
	us              []*User
	ns              map[uint]*User
	matchingService MatchingService
	validate        *requestValidator
	sem             *semaphore.Weighted
	log             *zap.Logger
}

func NewHub(matchingService MatchingService, maxConcurrent int64, log *zap.Logger) *Hub {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hub{
		ns:              make(map[uint]*User),
		us:              make([]*User, 0),
		matchingService: matchingService,
		validate:        newRequestValidator(),
		sem:             semaphore.NewWeighted(maxConcurrent),
		log:             log,
	}
}

func (h *Hub) Register(conn net.Conn) *User {
	user := &User{
		hub:  h,
		conn: conn,
	}

	h.mu.Lock()
	user.id = h.seq
	h.ns[user.id] = user
	h.us = append(h.us, user)

	h.seq++
	h.mu.Unlock()

	return user
}

// Watch. release runs once when user is removed, it frees whatever polls the connection.
func (h *Hub) Watch(user *User, release func()) {
	h.mu.Lock()
	user.release = release
	h.mu.Unlock()
}

// Dropped. log why the connection of user ended and remove it.
func (h *Hub) Dropped(user *User, err error) {
	var closed wsutil.ClosedError
	switch {
	case err == nil, errors.As(err, &closed), errors.Is(err, io.EOF):
		h.log.Debug("websocket client left", zap.Uint("user", user.id))
	default:
		h.log.Info("websocket connection dropped", zap.Uint("user", user.id), zap.Error(err))
	}
	h.Remove(user)
}

// Remove. unregister user and close its connection.
func (h *Hub) Remove(user *User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.ns[user.id]; !ok {
		return
	}
	delete(h.ns, user.id)

	i := sort.Search(len(h.us), func(i int) bool {
		return h.us[i].id >= user.id
	})

	newUs := make([]*User, len(h.us)-1)
	copy(newUs[:i], h.us[:i])
	copy(newUs[i:], h.us[i+1:])
	h.us = newUs

	user.conn.Close()
	if user.release != nil {
		user.release()
	}
}

func (h *Hub) RemoveAllUser() {
	h.mu.RLock()
	users := make([]*User, len(h.us))
	copy(users, h.us)
	h.mu.RUnlock()

	for _, user := range users {
		h.Remove(user)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.us)
}
