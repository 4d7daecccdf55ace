package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an opaque notification identifier. The backend may send it as a
// JSON string or a JSON integer; both decode to the same ID.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id string: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id %s: %w", string(data), err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id %s is not an integer", n.String())
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as used in request paths.
func (id ID) String() string { return string(id) }

// Navigation targets for a notification.
const (
	TargetNone         = ""
	TargetDocuments    = "documents"
	TargetApplications = "applications"
)

// Notification is a single backend-issued event shown to a user: a
// document or application status change, or a system alert.
type Notification struct {
	// ID is stable across polls.
	ID ID `json:"id"`

	// Kind is the tagged notification variant.
	Kind Kind `json:"kind"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// CreatedAt is when the backend created the notification.
	CreatedAt time.Time `json:"created_at"`

	// IsRead is only mutated through the store and the mutation gateway.
	IsRead bool `json:"is_read"`

	// IsImportant is set by backend classification.
	IsImportant bool `json:"is_important"`

	// RelatedDocumentID and RelatedApplicationID are weak references used
	// only to pick a navigation target.
	RelatedDocumentID    *ID `json:"related_document_id,omitempty"`
	RelatedApplicationID *ID `json:"related_application_id,omitempty"`

	// ActorName is the student or admin display name, if any.
	ActorName string `json:"actor_name,omitempty"`

	// MetadataLabel is the document type or application title, if any.
	MetadataLabel string `json:"metadata_label,omitempty"`
}

// Target returns where the UI should navigate when the notification is
// opened. Documents win over applications.
func (n Notification) Target() string {
	switch {
	case n.RelatedDocumentID != nil && *n.RelatedDocumentID != "":
		return TargetDocuments
	case n.RelatedApplicationID != nil && *n.RelatedApplicationID != "":
		return TargetApplications
	default:
		return TargetNone
	}
}

// TimeAgo renders the age of the notification relative to now. It is
// recomputed on every render and never stored.
func (n Notification) TimeAgo(now time.Time) string {
	return TimeAgo(n.CreatedAt, now)
}

// TimeAgo returns a human-friendly relative time string.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}

	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// Snapshot is the authoritative state returned by one fetch.
type Snapshot struct {
	Unread []Notification `json:"unread"`
	Recent []Notification `json:"recent"`

	// UnreadCount and ImportantCount are what the backend reported. The
	// store never displays them; it derives counts from the lists.
	UnreadCount    int `json:"unread_count"`
	ImportantCount int `json:"important_count"`
}
