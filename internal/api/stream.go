package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacylights-patch/internal/services/pubsub"
)

const writeWait = 5 * time.Second

// TopicConnected is sent once when a stream is ready.
const TopicConnected = "CONNECTED"

// StreamEvent is one message on the websocket stream.
type StreamEvent struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

type connectedMessage struct {
	Topics   []pubsub.Topic `json:"topics"`
	Universe string         `json:"universe,omitempty"`
}

// parseTopics reads a comma-separated topic list. Empty means every topic.
func parseTopics(raw string) ([]pubsub.Topic, error) {
	if raw == "" {
		return pubsub.Topics, nil
	}
	known := make(map[pubsub.Topic]bool, len(pubsub.Topics))
	for _, t := range pubsub.Topics {
		known[t] = true
	}

	var topics []pubsub.Topic
	for _, part := range strings.Split(raw, ",") {
		t := pubsub.Topic(strings.ToUpper(strings.TrimSpace(part)))
		if !known[t] {
			return nil, fmt.Errorf("unknown topic %q: %w", part, errBadRequest)
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// handleStream upgrades to a websocket and forwards pubsub events until the
// client goes away. Query parameters: topics (comma-separated) and universe.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		writeError(w, err)
		return
	}
	filter := r.URL.Query().Get("universe")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		log.Printf("⚠️  Websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Clients must answer pings; the server's read timeout no longer applies.
	pongWait := 2*s.opts.PingInterval + writeWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	subs := make([]*pubsub.Subscriber, 0, len(topics))
	for _, t := range topics {
		subs = append(subs, s.pubsub.Subscribe(t, filter, s.opts.StreamBufferSize))
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		for _, sub := range subs {
			s.pubsub.Unsubscribe(sub)
		}
	}()

	out := make(chan StreamEvent, s.opts.StreamBufferSize)
	for _, sub := range subs {
		go func(sub *pubsub.Subscriber) {
			for msg := range sub.Channel {
				select {
				case out <- StreamEvent{Topic: string(sub.Topic), Data: msg}:
				case <-done:
					return
				}
			}
		}(sub)
	}

	// Reads only to notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeEvent(conn, StreamEvent{Topic: TopicConnected, Data: connectedMessage{Topics: topics, Universe: filter}}); err != nil {
		return
	}

	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-out:
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
