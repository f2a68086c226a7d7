package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"caravan.ai/internal/protocol"
	"caravan.ai/internal/sim/geo"
)

type Server struct {
	hub   *Hub
	graph *geo.Graph
	runID string
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(hub *Hub, g *geo.Graph, runID string, logger *log.Logger) *Server {
	return &Server{
		hub:   hub,
		graph: g,
		runID: runID,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type BootstrapResponse struct {
	ProtocolVersion string           `json:"protocol_version"`
	RunID           string           `json:"run_id"`
	MapDigest       string           `json:"map_digest"`
	Areas           []AreaView       `json:"areas"`
	Connections     []ConnectionView `json:"connections"`
}

type AreaView struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ConnectionView struct {
	ID       int     `json:"id"`
	A        string  `json:"a"`
	Z        string  `json:"z"`
	Distance float64 `json:"distance"`
	Width    int     `json:"width"`
	Class    string  `json:"class,omitempty"`
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			RunID:           s.runID,
			MapDigest:       s.graph.Digest,
		}
		for _, a := range s.graph.Areas() {
			resp.Areas = append(resp.Areas, AreaView{ID: a.ID.String(), Name: a.Name})
		}
		for _, c := range s.graph.Connections() {
			resp.Connections = append(resp.Connections, ConnectionView{
				ID:       int(c.ID),
				A:        c.A.String(),
				Z:        c.Z.String(),
				Distance: c.Distance.Float(),
				Width:    c.Width,
				Class:    c.Class,
			})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := s.hub.Subscribe(sid, sub, 256)
		defer s.hub.Unsubscribe(sid)
		s.log.Printf("observer %s subscribed units=%v failures=%v", sid, sub.Units, sub.IncludeFailures)

		welcome, _ := json.Marshal(protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			RunID:           s.runID,
			MapDigest:       s.graph.Digest,
		})
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				s.hub.Update(sid, sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
