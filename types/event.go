package types

import "fmt"

// Event kinds emitted by state-changing operations.
const (
	EventQueryPosted       = "query_posted"
	EventRewardUpgraded    = "reward_upgraded"
	EventQueryClaimed      = "query_claimed"
	EventInclusionReported = "inclusion_reported"
	EventResultReported    = "result_reported"
	EventQueryDeleted      = "query_deleted"
)

// EventAttribute is a single key-value tag within an event.
type EventAttribute struct {
	Key   string `cramberry:"1"`
	Value string `cramberry:"2"`
	Index bool   `cramberry:"3"` // Whether indexers should pick this up.
}

// Event is a notification emitted for external indexing.
type Event struct {
	Kind       string           `cramberry:"1"`
	Attributes []EventAttribute `cramberry:"2"`
}

// NewQueryEvent builds an event carrying the indexed requester and
// query id attributes every bridge notification has.
func NewQueryEvent(kind string, requester Address, id QueryID, extra ...EventAttribute) Event {
	attrs := make([]EventAttribute, 0, 2+len(extra))
	attrs = append(attrs,
		EventAttribute{Key: "requester", Value: requester.String(), Index: true},
		EventAttribute{Key: "query_id", Value: id.String(), Index: true},
	)
	attrs = append(attrs, extra...)
	return Event{Kind: kind, Attributes: attrs}
}

// Attr builds a non-indexed attribute.
func Attr(key string, value any) EventAttribute {
	return EventAttribute{Key: key, Value: fmt.Sprint(value)}
}

// Get returns the value of the first attribute with the given key.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
