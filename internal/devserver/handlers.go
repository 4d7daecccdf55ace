package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source/campus"
	"github.com/nhle/campusbourses/internal/store"
)

const scopeKey = "scope"

// Listing caps per audience.
var listCaps = map[model.Scope]struct{ unread, recent int }{
	model.ScopeStudent: {unread: 20, recent: 50},
	model.ScopeAdmin:   {unread: 10, recent: 20},
}

type createRequest struct {
	Kind                 string  `json:"notification_type" binding:"required"`
	Title                string  `json:"title" binding:"required"`
	Message              string  `json:"message"`
	IsImportant          bool    `json:"is_important"`
	RelatedDocumentID    *string `json:"related_document_id"`
	RelatedApplicationID *string `json:"related_application_id"`
	ActorName            string  `json:"actor_name"`
	MetadataLabel        string  `json:"metadata_label"`
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func audience(c *gin.Context) model.Scope {
	return c.MustGet(scopeKey).(model.Scope)
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.log.Error(op, zap.Error(err))
	respondError(c, http.StatusInternalServerError, "Erreur interne du serveur")
}

// listNotifications answers GET /notifications. Counts are taken from the
// capped unread slice.
func (s *Server) listNotifications(c *gin.Context) {
	scope := audience(c)
	caps := listCaps[scope]
	ctx := c.Request.Context()

	unread, err := s.store.ListNotifications(ctx, string(scope), store.ListFilter{UnreadOnly: true, Limit: caps.unread})
	if err != nil {
		s.internalError(c, "listing unread notifications", err)
		return
	}
	recent, err := s.store.ListNotifications(ctx, string(scope), store.ListFilter{Limit: caps.recent})
	if err != nil {
		s.internalError(c, "listing recent notifications", err)
		return
	}

	resp := campus.NotificationsResponse{
		Unread:      toWire(scope, unread),
		Recent:      toWire(scope, recent),
		UnreadCount: len(unread),
	}
	for _, n := range unread {
		if n.IsImportant {
			resp.ImportantCount++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createNotification(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !model.Kind(req.Kind).Valid() {
		known := make([]string, 0, len(model.Kinds()))
		for _, k := range model.Kinds() {
			known = append(known, string(k))
		}
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Type de notification inconnu: %s (attendus: %s)",
			req.Kind, strings.Join(known, ", ")))
		return
	}

	scope := audience(c)
	n, err := s.store.CreateNotification(c.Request.Context(), store.Notification{
		Audience:             string(scope),
		Kind:                 req.Kind,
		Title:                req.Title,
		Message:              req.Message,
		IsImportant:          req.IsImportant,
		RelatedDocumentID:    req.RelatedDocumentID,
		RelatedApplicationID: req.RelatedApplicationID,
		ActorName:            req.ActorName,
		MetadataLabel:        req.MetadataLabel,
	})
	if err != nil {
		s.internalError(c, "creating notification", err)
		return
	}

	s.log.Info("notification created",
		zap.String("scope", string(scope)),
		zap.String("id", n.ID),
		zap.String("kind", n.Kind),
	)
	c.JSON(http.StatusCreated, toWireOne(scope, n))
}

func (s *Server) markRead(c *gin.Context) {
	scope := audience(c)
	err := s.store.MarkRead(c.Request.Context(), string(scope), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Notification non trouvée")
		return
	}
	if err != nil {
		s.internalError(c, "marking notification as read", err)
		return
	}
	c.JSON(http.StatusOK, campus.MessageResponse{Message: "Notification marquée comme lue"})
}

func (s *Server) markAllRead(c *gin.Context) {
	scope := audience(c)
	updated, err := s.store.MarkAllRead(c.Request.Context(), string(scope))
	if err != nil {
		s.internalError(c, "marking all notifications as read", err)
		return
	}
	c.JSON(http.StatusOK, campus.MessageResponse{
		Message:      fmt.Sprintf("%d notifications marquées comme lues", updated),
		UpdatedCount: int(updated),
	})
}

func (s *Server) deleteNotification(c *gin.Context) {
	scope := audience(c)
	err := s.store.DeleteNotification(c.Request.Context(), string(scope), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Notification non trouvée")
		return
	}
	if err != nil {
		s.internalError(c, "deleting notification", err)
		return
	}
	c.JSON(http.StatusOK, campus.MessageResponse{Message: "Notification supprimée avec succès"})
}

func (s *Server) deleteAll(c *gin.Context) {
	scope := audience(c)
	deleted, err := s.store.DeleteAll(c.Request.Context(), string(scope))
	if err != nil {
		s.internalError(c, "deleting all notifications", err)
		return
	}
	c.JSON(http.StatusOK, campus.MessageResponse{
		Message:      fmt.Sprintf("%d notifications supprimées", deleted),
		DeletedCount: int(deleted),
	})
}

func toWire(scope model.Scope, rows []store.Notification) []campus.Notification {
	out := make([]campus.Notification, 0, len(rows))
	for _, n := range rows {
		out = append(out, toWireOne(scope, n))
	}
	return out
}

// toWireOne serializes a row the way the backend does for the audience:
// admins see the student name and document type, students the
// application title.
func toWireOne(scope model.Scope, n store.Notification) campus.Notification {
	w := campus.Notification{
		ID:                   model.ID(n.ID),
		NotificationType:     n.Kind,
		Title:                n.Title,
		Message:              n.Message,
		IsRead:               n.IsRead,
		IsImportant:          n.IsImportant,
		CreatedAt:            n.CreatedAt.UTC().Format(time.RFC3339Nano),
		RelatedDocumentID:    wireRef(n.RelatedDocumentID),
		RelatedApplicationID: wireRef(n.RelatedApplicationID),
	}
	if scope == model.ScopeAdmin {
		w.StudentName = n.ActorName
		w.DocumentTypeDisplay = n.MetadataLabel
	} else {
		w.ApplicationTitle = n.MetadataLabel
	}
	return w
}

func wireRef(ref *string) *model.ID {
	if ref == nil || *ref == "" {
		return nil
	}
	id := model.ID(*ref)
	return &id
}
