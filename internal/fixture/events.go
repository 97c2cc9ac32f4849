package fixture

// EventKind names a channel notification.
type EventKind string

const (
	EventNameUpdate    EventKind = "nameUpdate"
	EventAddressUpdate EventKind = "addressUpdate"
)

// Event is delivered to handlers after a successful mutation.
// Name is set for EventNameUpdate; Offset, Type and Value for EventAddressUpdate.
type Event struct {
	Kind      EventKind
	ChannelID int
	Name      string
	Offset    int
	Type      ChannelType
	Value     int
}

// Handler receives channel events.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription struct {
	Kind EventKind
	id   uint64
}

type listener struct {
	id      uint64
	handler Handler
}

// listeners keeps handlers per kind in registration order.
// Callers hold the owning channel's lock.
type listeners struct {
	nextID uint64
	byKind map[EventKind][]listener
}

func (l *listeners) add(kind EventKind, h Handler) Subscription {
	if l.byKind == nil {
		l.byKind = make(map[EventKind][]listener)
	}
	l.nextID++
	l.byKind[kind] = append(l.byKind[kind], listener{id: l.nextID, handler: h})
	return Subscription{Kind: kind, id: l.nextID}
}

func (l *listeners) remove(sub Subscription) bool {
	ls := l.byKind[sub.Kind]
	for i, entry := range ls {
		if entry.id == sub.id {
			// Copy so a dispatch already holding the old slice is unaffected.
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			l.byKind[sub.Kind] = next
			return true
		}
	}
	return false
}

func (l *listeners) snapshot(kind EventKind) []listener {
	return l.byKind[kind]
}

func (l *listeners) count(kind EventKind) int {
	return len(l.byKind[kind])
}

func dispatch(ls []listener, ev Event) {
	for _, entry := range ls {
		entry.handler(ev)
	}
}
