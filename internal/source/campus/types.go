package campus

import "github.com/nhle/campusbourses/internal/model"

// Notification is a single notification as serialized by the backend.
// time_ago and icon are sent too but derived locally instead.
type Notification struct {
	ID                   model.ID  `json:"id"`
	NotificationType     string    `json:"notification_type"`
	Title                string    `json:"title"`
	Message              string    `json:"message"`
	IsRead               bool      `json:"is_read"`
	IsImportant          bool      `json:"is_important"`
	CreatedAt            string    `json:"created_at"`
	RelatedDocumentID    *model.ID `json:"related_document_id"`
	RelatedApplicationID *model.ID `json:"related_application_id"`

	// Display-only fields. Admin payloads carry student_name and
	// document_type_display, student payloads carry application_title.
	StudentName         string `json:"student_name,omitempty"`
	DocumentTypeDisplay string `json:"document_type_display,omitempty"`
	ApplicationTitle    string `json:"application_title,omitempty"`
}

// NotificationsResponse is the response from GET /notifications.
type NotificationsResponse struct {
	Unread         []Notification `json:"unread"`
	Recent         []Notification `json:"recent"`
	UnreadCount    int            `json:"unread_count"`
	ImportantCount int            `json:"important_count"`
}

// MessageResponse is the acknowledgement returned by mutations.
type MessageResponse struct {
	Message      string `json:"message,omitempty"`
	UpdatedCount int    `json:"updated_count,omitempty"`
	DeletedCount int    `json:"deleted_count,omitempty"`
}

// ErrorResponse is the error envelope. The backend uses "error"; DRF
// defaults use "detail".
type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// Reason returns the first non-empty message.
func (e ErrorResponse) Reason() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Detail != "":
		return e.Detail
	default:
		return e.Message
	}
}
