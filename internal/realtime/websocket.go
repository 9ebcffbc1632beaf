package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	scopeBufSize   = 256
)

type wsControl struct {
	Subscribe   *wsScopeRef `json:"subscribe,omitempty"`
	Unsubscribe *wsScopeRef `json:"unsubscribe,omitempty"`
}

type wsScopeRef struct {
	Scope Scope `json:"scope"`
}

// WsSubscriber multiplexes all scopes over a single websocket
// connection. The server routes events by scope; the read loop here
// demultiplexes them onto per-subscription channels.
type WsSubscriber struct {
	conn     *websocket.Conn
	log      *log.Logger
	send     chan []byte
	subsLock sync.Mutex
	subs     map[Scope]*wsSubscription
	stop     chan struct{}
	closed   bool
}

type wsSubscription struct {
	scope  Scope
	events chan Event
	parent *WsSubscriber
}

func (s *wsSubscription) Events() <-chan Event {
	return s.events
}

func (s *wsSubscription) Close() error {
	return s.parent.unsubscribe(s)
}

func DialWsSubscriber(ctx context.Context, wsUrl, token string, logger *log.Logger) (*WsSubscriber, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsUrl, hdr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsUrl, err)
	}

	s := &WsSubscriber{
		conn: conn,
		log:  logger,
		send: make(chan []byte, scopeBufSize),
		subs: make(map[Scope]*wsSubscription),
		stop: make(chan struct{}),
	}

	go s.readLoop()
	go s.writeLoop()

	return s, nil
}

func (s *WsSubscriber) Subscribe(ctx context.Context, scope Scope) (Subscription, error) {
	s.subsLock.Lock()
	if s.closed {
		s.subsLock.Unlock()
		return nil, fmt.Errorf("subscriber is closed")
	}
	if _, ok := s.subs[scope]; ok {
		s.subsLock.Unlock()
		return nil, fmt.Errorf("already subscribed to scope %q", scope)
	}

	sub := &wsSubscription{
		scope:  scope,
		events: make(chan Event, scopeBufSize),
		parent: s,
	}
	s.subs[scope] = sub
	s.subsLock.Unlock()

	if err := s.queueControl(wsControl{Subscribe: &wsScopeRef{Scope: scope}}); err != nil {
		s.subsLock.Lock()
		delete(s.subs, scope)
		s.subsLock.Unlock()
		return nil, err
	}

	return sub, nil
}

func (s *WsSubscriber) unsubscribe(sub *wsSubscription) error {
	s.subsLock.Lock()
	current, ok := s.subs[sub.scope]
	if !ok || current != sub {
		s.subsLock.Unlock()
		return nil
	}
	delete(s.subs, sub.scope)
	close(sub.events)
	s.subsLock.Unlock()

	return s.queueControl(wsControl{Unsubscribe: &wsScopeRef{Scope: sub.scope}})
}

func (s *WsSubscriber) queueControl(ctl wsControl) error {
	raw, err := json.Marshal(ctl)
	if err != nil {
		return fmt.Errorf("marshal control frame: %w", err)
	}

	select {
	case s.send <- raw:
		return nil
	case <-s.stop:
		return fmt.Errorf("subscriber is closed")
	}
}

func (s *WsSubscriber) readLoop() {
	defer func() {
		s.conn.Close()
		s.closeAllSubs()
		s.log.Println("ws read exiting")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.log.Println("error parsing event:", err)
			continue
		}

		s.dispatch(ev)
	}
}

func (s *WsSubscriber) dispatch(ev Event) {
	s.subsLock.Lock()
	sub, ok := s.subs[ev.Scope]
	s.subsLock.Unlock()

	if !ok {
		// event for a scope unsubscribed meanwhile
		return
	}

	select {
	case sub.events <- ev:
	default:
		s.log.Printf("event channel full for scope %q, dropping event", ev.Scope)
	}
}

func (s *WsSubscriber) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Println("ws write exiting")
	}()

	for {
		select {
		case raw := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.log.Printf("ws: write: %v", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *WsSubscriber) closeAllSubs() {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	for scope, sub := range s.subs {
		close(sub.events)
		delete(s.subs, scope)
	}
	s.closed = true
}

func (s *WsSubscriber) Close() error {
	close(s.stop)
	return s.conn.Close()
}
