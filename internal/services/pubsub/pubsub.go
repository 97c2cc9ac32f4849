// Package pubsub fans patch, channel and cue events out to stream subscribers.
package pubsub

import (
	"sync"

	"github.com/lucsky/cuid"
)

// Topic represents a subscription topic.
type Topic string

const (
	TopicChannelAddress Topic = "CHANNEL_ADDRESS_UPDATED"
	TopicChannelName    Topic = "CHANNEL_NAME_UPDATED"
	TopicPatchUpdated   Topic = "PATCH_UPDATED"
	TopicCueRecorded    Topic = "CUE_RECORDED"
)

// Topics lists every topic in a stable order.
var Topics = []Topic{TopicChannelAddress, TopicChannelName, TopicPatchUpdated, TopicCueRecorded}

// ChannelAddressMessage is published for every successful address write.
type ChannelAddressMessage struct {
	ChannelID int    `json:"channelId"`
	Universe  int    `json:"universe"`
	Address   int    `json:"address"`
	Offset    int    `json:"offset"`
	Type      string `json:"type"`
	Value     int    `json:"value"`
}

// ChannelNameMessage is published when a channel is renamed.
type ChannelNameMessage struct {
	ChannelID int    `json:"channelId"`
	Name      string `json:"name"`
}

// PatchMessage is published when a channel is patched, unpatched or renumbered.
type PatchMessage struct {
	Action    string `json:"action"`
	ChannelID int    `json:"channelId"`
	Universe  int    `json:"universe"`
}

// CueMessage is published when a cue is recorded.
type CueMessage struct {
	CueNumber int    `json:"cueNumber"`
	Name      string `json:"name"`
	Universe  int    `json:"universe"`
}

// Subscriber represents a subscription channel.
type Subscriber struct {
	ID      string
	Topic   Topic
	Filter  string // Optional filter value (e.g., universe)
	Channel chan interface{}
}

// PubSub manages subscriptions and message distribution.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
}

// New creates a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe creates a new subscription for a topic.
func (ps *PubSub) Subscribe(topic Topic, filter string, bufferSize int) *Subscriber {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub := &Subscriber{
		ID:      cuid.New(),
		Topic:   topic,
		Filter:  filter,
		Channel: make(chan interface{}, bufferSize),
	}

	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *PubSub) Unsubscribe(sub *Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.subscribers[sub.Topic]
	for i, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			next := make([]*Subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			ps.subscribers[sub.Topic] = append(next, subs[i+1:]...)
			return
		}
	}
}

// Publish sends a message to all subscribers of a topic.
// If filter is non-empty, only sends to subscribers with matching filter or empty filter.
// Full subscriber buffers drop the message rather than block the publisher.
func (ps *PubSub) Publish(topic Topic, filter string, message interface{}) {
	// Hold the read lock while sending so Unsubscribe cannot close a channel mid-send.
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subscribers[topic] {
		if sub.Filter == "" || filter == "" || sub.Filter == filter {
			select {
			case sub.Channel <- message:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *PubSub) SubscriberCount(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}
