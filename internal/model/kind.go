package model

// Kind identifies the notification variant.
type Kind string

const (
	KindDocumentUpload         Kind = "document_upload"
	KindDocumentVerified       Kind = "document_verified"
	KindDocumentRejected       Kind = "document_rejected"
	KindApplicationSubmitted   Kind = "application_submitted"
	KindApplicationApproved    Kind = "application_approved"
	KindApplicationRejected    Kind = "application_rejected"
	KindApplicationUnderReview Kind = "application_under_review"
	KindUserRegistered         Kind = "user_registered"
	KindSystemAlert            Kind = "system_alert"
	KindDeadlineReminder       Kind = "deadline_reminder"
	KindInfoRequest            Kind = "info_request"
)

type kindInfo struct {
	icon  string
	label string
}

var kinds = map[Kind]kindInfo{
	KindDocumentUpload:         {"📄", "Document uploaded"},
	KindDocumentVerified:       {"✅", "Document verified"},
	KindDocumentRejected:       {"❌", "Document rejected"},
	KindApplicationSubmitted:   {"📝", "Application submitted"},
	KindApplicationApproved:    {"🎓", "Application approved"},
	KindApplicationRejected:    {"📝", "Application rejected"},
	KindApplicationUnderReview: {"🔍", "Application under review"},
	KindUserRegistered:         {"👤", "User registered"},
	KindSystemAlert:            {"🔔", "System alert"},
	KindDeadlineReminder:       {"⏰", "Deadline reminder"},
	KindInfoRequest:            {"ℹ️", "Information request"},
}

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{
		KindDocumentUpload,
		KindDocumentVerified,
		KindDocumentRejected,
		KindApplicationSubmitted,
		KindApplicationApproved,
		KindApplicationRejected,
		KindApplicationUnderReview,
		KindUserRegistered,
		KindSystemAlert,
		KindDeadlineReminder,
		KindInfoRequest,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Icon returns the glyph shown next to the notification. Unknown kinds
// render like a system alert.
func (k Kind) Icon() string {
	if info, ok := kinds[k]; ok {
		return info.icon
	}
	return kinds[KindSystemAlert].icon
}

// Label returns the human-readable kind name.
func (k Kind) Label() string {
	if info, ok := kinds[k]; ok {
		return info.label
	}
	return kinds[KindSystemAlert].label
}
