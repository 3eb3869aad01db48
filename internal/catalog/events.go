package catalog

import "time"

// EventKind names a catalog state change.
type EventKind string

// Catalog state changes reported to audit and notification sinks.
const (
	EventAdAccepted   EventKind = "ad_accepted"
	EventAdSuperseded EventKind = "ad_superseded"
	EventContentSaved EventKind = "content_saved"
)

// Event records one state change. RelatedID links a superseded ad to the ad
// that replaced it, or a content record to the ad that linked to it.
type Event struct {
	Kind      EventKind `json:"kind"`
	RecordID  string    `json:"record_id"`
	RelatedID string    `json:"related_id,omitempty"`
	Link      string    `json:"link,omitempty"`
	At        time.Time `json:"at"`
}
