// Package notify publishes upload lifecycle events to viewers subscribed to
// a collection. Delivery is best-effort: consumers that miss a final event
// resolve through the metadata store instead.
package notify

import "sync"

type Status string

const (
	StatusReceived   Status = "received"
	StatusAssembled  Status = "assembled"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Event is the status payload pushed to a collection's subscribers. ID is a
// session id during upload and a media asset id once processing starts.
type Event struct {
	ID              string `json:"id"`
	Status          Status `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	StorageKey      string `json:"storage_key,omitempty"`
	PreviewKey      string `json:"preview_key,omitempty"`
	ThumbKey        string `json:"thumb_key,omitempty"`
	Error           string `json:"error,omitempty"`
}

type Notifier interface {
	Publish(scopeID string, event Event)
}

// NullNotifier drops everything. Components take it when no realtime
// transport is wired up.
type NullNotifier struct{}

func (NullNotifier) Publish(string, Event) {}

// RecordingNotifier captures published events for tests.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []ScopedEvent
}

type ScopedEvent struct {
	ScopeID string
	Event   Event
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Publish(scopeID string, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ScopedEvent{ScopeID: scopeID, Event: event})
}

func (n *RecordingNotifier) Events() []ScopedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ScopedEvent(nil), n.events...)
}

// LastWithStatus returns the most recent event with the given status, or nil.
func (n *RecordingNotifier) LastWithStatus(status Status) *ScopedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Event.Status == status {
			e := n.events[i]
			return &e
		}
	}
	return nil
}
