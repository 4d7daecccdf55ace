package campus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
)

// Adapter implements source.Source for the CampusBourses API.
type Adapter struct {
	client *Client
	scope  model.Scope
	log    *zap.Logger
}

var _ source.Source = (*Adapter)(nil)

// NewAdapter creates a new CampusBourses source adapter.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client: NewClient(cfg),
		scope:  cfg.Scope,
		log:    logger.With(zap.String("scope", string(cfg.Scope))),
	}
}

// Scope returns the audience served by this adapter.
func (a *Adapter) Scope() model.Scope {
	return a.scope
}

// Fetch retrieves the unread and recent notifications.
func (a *Adapter) Fetch(ctx context.Context) (*model.Snapshot, error) {
	var resp NotificationsResponse
	if err := a.client.Get(ctx, "/notifications", &resp); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	return &model.Snapshot{
		Unread:         a.toModels(resp.Unread),
		Recent:         a.toModels(resp.Recent),
		UnreadCount:    resp.UnreadCount,
		ImportantCount: resp.ImportantCount,
	}, nil
}

// MarkRead marks a single notification as read.
func (a *Adapter) MarkRead(ctx context.Context, id model.ID) error {
	if err := a.client.Post(ctx, "/notifications/"+id.String()+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification as read.
func (a *Adapter) MarkAllRead(ctx context.Context) error {
	var resp MessageResponse
	if err := a.client.Post(ctx, "/notifications/read-all", nil, &resp); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	a.log.Debug("marked all read", zap.Int("updated", resp.UpdatedCount))
	return nil
}

// Delete removes a single notification.
func (a *Adapter) Delete(ctx context.Context, id model.ID) error {
	if err := a.client.Delete(ctx, "/notifications/"+id.String(), nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every notification.
func (a *Adapter) DeleteAll(ctx context.Context) error {
	var resp MessageResponse
	if err := a.client.Post(ctx, "/notifications/delete-all", nil, &resp); err != nil {
		return fmt.Errorf("deleting all notifications: %w", err)
	}
	a.log.Debug("deleted all", zap.Int("deleted", resp.DeletedCount))
	return nil
}

func (a *Adapter) toModels(in []Notification) []model.Notification {
	out := make([]model.Notification, 0, len(in))
	for _, n := range in {
		out = append(out, a.toModel(n))
	}
	return out
}

// toModel converts a wire notification. Unknown kinds are kept as sent and
// render as system alerts.
func (a *Adapter) toModel(n Notification) model.Notification {
	kind := model.Kind(n.NotificationType)
	if !kind.Valid() {
		a.log.Debug("unknown notification type", zap.String("type", n.NotificationType), zap.String("id", n.ID.String()))
	}

	createdAt := parseTime(n.CreatedAt)
	if createdAt.IsZero() && n.CreatedAt != "" {
		a.log.Warn("unparseable created_at", zap.String("value", n.CreatedAt), zap.String("id", n.ID.String()))
	}

	label := n.DocumentTypeDisplay
	if label == "" {
		label = n.ApplicationTitle
	}

	return model.Notification{
		ID:                   n.ID,
		Kind:                 kind,
		Title:                n.Title,
		Message:              n.Message,
		CreatedAt:            createdAt,
		IsRead:               n.IsRead,
		IsImportant:          n.IsImportant,
		RelatedDocumentID:    nonEmpty(n.RelatedDocumentID),
		RelatedApplicationID: nonEmpty(n.RelatedApplicationID),
		ActorName:            n.StudentName,
		MetadataLabel:        label,
	}
}

func nonEmpty(id *model.ID) *model.ID {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// parseTime accepts the ISO-8601 variants the backend emits, with or
// without a zone offset.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// FromConfig builds an adapter from the application settings.
func FromConfig(cfg model.AppConfig, token string, logger *zap.Logger) (*Adapter, error) {
	scope, err := model.ParseScope(cfg.Backend.Scope)
	if err != nil {
		return nil, err
	}
	b := cfg.Backend
	return NewAdapter(Config{
		BaseURL:            b.BaseURL,
		Scope:              scope,
		Token:              token,
		Timeout:            cfg.RequestTimeout(),
		RetryMaxElapsed:    time.Duration(b.RetryMaxElapsedSec) * time.Second,
		BreakerMaxFailures: uint32(b.BreakerMaxFailures),
		BreakerTimeout:     time.Duration(b.BreakerTimeoutSec) * time.Second,
		Logger:             logger,
	}), nil
}
