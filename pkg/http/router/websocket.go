package router

import (
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/waymatcher/pkg/http/router/controllers"
	"github.com/mailru/easygo/netpoll"
	"go.uber.org/zap"
)

/*
serveWebsocket. stream of match requests over one connection, see controllers.Hub.
the handler returns right after the upgrade, the connection file descriptor is added to the
epoll interest list and every readable event schedules one User.MatchNext on the goroutine pool.
idle connections hold no goroutine, ref: https://sergey.kamardin.org/articles/million-websocket-and-go/

the descriptor is registered one-shot and re-armed after each request is answered,
so frames of one connection are answered in order.
*/
func (api *API) serveWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, _, hs, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		api.log.Info("upgrade error", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}
	// the server read/write timeouts must not apply to a long lived connection
	if err := conn.SetDeadline(time.Time{}); err != nil {
		api.log.Debug("clear connection deadline", zap.Error(err), zap.String("connection name", nameConn(conn)))
	}

	api.log.Info("established websocket connection", zap.String("connection name", nameConn(conn)),
		zap.String("protocol", hs.Protocol))

	user := api.hub.Register(conn)

	desc, err := netpoll.HandleReadOnce(conn)
	if err != nil {
		api.hub.Dropped(user, err)
		return
	}
	api.hub.Watch(user, func() {
		if err := api.poller.Stop(desc); err != nil {
			api.log.Debug("stop polling connection", zap.Error(err))
		}
		desc.Close()
	})

	err = api.poller.Start(desc, func(ev netpoll.Event) {
		if ev&(netpoll.EventReadHup|netpoll.EventHup) != 0 {
			// peer closed its end of the stream socket
			api.hub.Dropped(user, nil)
			return
		}

		err := api.pool.Schedule(func() {
			api.matchNext(desc, user)
		})
		if err != nil {
			api.hub.Dropped(user, err)
		}
	})
	if err != nil {
		api.hub.Dropped(user, err)
	}
}

// matchNext. answer one request of user then wait for the next readable event.
func (api *API) matchNext(desc *netpoll.Desc, user *controllers.User) {
	if err := user.MatchNext(api.ctx); err != nil {
		api.hub.Dropped(user, err)
		return
	}
	if err := api.poller.Resume(desc); err != nil {
		api.hub.Dropped(user, err)
	}
}

func nameConn(conn net.Conn) string {
	return conn.LocalAddr().String() + " > " + conn.RemoteAddr().String()
}
