package mapping

// EventType names an attribute event fired by InstanceState.
type EventType string

const (
	// EventSet fires after a column attribute or scalar relationship is written.
	EventSet EventType = "set"
	// EventAppend fires after a related instance joins a relationship.
	EventAppend EventType = "append"
	// EventRemove fires after a related instance leaves a relationship.
	EventRemove EventType = "remove"
)

// Event describes a single attribute mutation.
type Event struct {
	Type     EventType
	Key      string
	Value    any
	OldValue any
	State    *InstanceState
}

// Listener receives attribute events for one mapper.
type Listener func(Event)

// listeners is keyed by event type, then attribute key. The empty key
// receives events for every attribute.
type listeners struct {
	byType map[EventType]map[string][]Listener
}

func newListeners() *listeners {
	return &listeners{byType: make(map[EventType]map[string][]Listener)}
}

func (l *listeners) register(t EventType, key string, fn Listener) {
	keys, ok := l.byType[t]
	if !ok {
		keys = make(map[string][]Listener)
		l.byType[t] = keys
	}
	keys[key] = append(keys[key], fn)
}

func (l *listeners) has(t EventType) bool {
	return len(l.byType[t]) > 0
}

func (l *listeners) dispatch(ev Event) {
	keys := l.byType[ev.Type]
	if len(keys) == 0 {
		return
	}
	for _, fn := range keys[ev.Key] {
		fn(ev)
	}
	if ev.Key != "" {
		for _, fn := range keys[""] {
			fn(ev)
		}
	}
}
