package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// WSConnKeeper keeps subscriptions of websocket connections.
// A client sends a job or parent ID to subscribe, the ID prefixed with '-' unsubscribes.
type WSConnKeeper struct {
	keyConns map[string]map[WsConn]struct{}
	connKeys map[WsConn]map[string]struct{}
	mapLock  *sync.Mutex
	timeOut  time.Duration
}

// NewWSConnKeeper creates manager
func NewWSConnKeeper() *WSConnKeeper {
	res := &WSConnKeeper{}
	res.keyConns = make(map[string]map[WsConn]struct{})
	res.connKeys = make(map[WsConn]map[string]struct{})
	res.mapLock = &sync.Mutex{}
	res.timeOut = time.Minute * 30 // idle connection limit
	return res
}

// HandleConnection reads subscriptions until the connection is closed or idle
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.deleteConnection(conn)
	defer conn.Close()
	readCh := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(readCh)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Debug().Err(err).Msg("read ended")
				return
			}
			msg := strings.TrimSpace(string(message))
			if msg != "" {
				select {
				case readCh <- msg:
				case <-done:
					return
				}
			} else {
				time.Sleep(20 * time.Millisecond)
			}
		}
	}()

	ta := time.After(kp.timeOut)
loop:
	for {
		select {
		case <-ta:
			goapp.Log.Debug().Msg("conn timeouted")
			break loop
		case msg, ok := <-readCh:
			if !ok {
				break loop
			}
			if key, found := strings.CutPrefix(msg, "-"); found {
				kp.unsubscribe(conn, key)
			} else {
				kp.subscribe(conn, msg)
			}
			ta = time.After(kp.timeOut)
		}
	}
	goapp.Log.Debug().Msg("handleConnection finish")
	return nil
}

func (kp *WSConnKeeper) deleteConnection(conn WsConn) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	for key := range kp.connKeys[conn] {
		kp.removeNoSync(conn, key)
	}
	delete(kp.connKeys, conn)
	goapp.Log.Info().Int("active", len(kp.connKeys)).Msg("connection deleted")
}

func (kp *WSConnKeeper) subscribe(conn WsConn, key string) {
	goapp.Log.Info().Str("key", goapp.Sanitize(key)).Msg("subscribe")
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	keys, found := kp.connKeys[conn]
	if !found {
		keys = map[string]struct{}{}
		kp.connKeys[conn] = keys
	}
	keys[key] = struct{}{}
	conns, found := kp.keyConns[key]
	if !found {
		conns = map[WsConn]struct{}{}
		kp.keyConns[key] = conns
	}
	conns[conn] = struct{}{}
}

func (kp *WSConnKeeper) unsubscribe(conn WsConn, key string) {
	goapp.Log.Info().Str("key", goapp.Sanitize(key)).Msg("unsubscribe")
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	kp.removeNoSync(conn, key)
	if keys, found := kp.connKeys[conn]; found {
		delete(keys, key)
	}
}

func (kp *WSConnKeeper) removeNoSync(conn WsConn, key string) {
	conns, found := kp.keyConns[key]
	if !found {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(kp.keyConns, key)
	}
}

// GetConnections returns connections subscribed to any of the keys, each connection once
func (kp *WSConnKeeper) GetConnections(keys ...string) []WsConn {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	seen := map[WsConn]struct{}{}
	res := []WsConn{}
	for _, k := range keys {
		for c := range kp.keyConns[k] {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				res = append(res, c)
			}
		}
	}
	return res
}
