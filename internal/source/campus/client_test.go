package campus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
)

const fetchBody = `{
  "unread": [
    {"id": 3, "notification_type": "document_rejected", "title": "Relevé refusé",
     "message": "Illisible", "is_read": false, "is_important": true,
     "created_at": "2024-05-01T09:30:00.123456Z", "related_document_id": 12,
     "related_application_id": null, "document_type_display": "Relevé de notes",
     "time_ago": "Il y a 5 min", "icon": "❌"}
  ],
  "recent": [
    {"id": "3", "notification_type": "document_rejected", "title": "Relevé refusé",
     "message": "Illisible", "is_read": false, "is_important": true,
     "created_at": "2024-05-01T09:30:00.123456Z", "related_document_id": 12},
    {"id": 1, "notification_type": "scholarship_paid", "title": "Virement",
     "message": "", "is_read": true, "is_important": false,
     "created_at": "2024-04-28T08:00:00", "related_application_id": 4,
     "application_title": "Bourse de mérite"}
  ],
  "unread_count": 1,
  "important_count": 1
}`

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	return NewAdapter(Config{
		BaseURL:            srv.URL + "/api",
		Scope:              model.ScopeStudent,
		Token:              "secret",
		Timeout:            2 * time.Second,
		RetryMaxElapsed:    3 * time.Second,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
	})
}

func TestAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/student/notifications", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fetchBody))
	}))
	defer srv.Close()

	snap, err := newTestAdapter(t, srv).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Unread, 1)
	require.Len(t, snap.Recent, 2)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, 1, snap.ImportantCount)

	u := snap.Unread[0]
	assert.Equal(t, model.ID("3"), u.ID)
	assert.Equal(t, snap.Recent[0].ID, u.ID, "int and string ids decode alike")
	assert.Equal(t, model.KindDocumentRejected, u.Kind)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 123456000, time.UTC), u.CreatedAt)
	assert.Equal(t, model.TargetDocuments, u.Target())
	assert.Equal(t, "Relevé de notes", u.MetadataLabel)

	old := snap.Recent[1]
	assert.Equal(t, model.Kind("scholarship_paid"), old.Kind)
	assert.Equal(t, model.KindSystemAlert.Icon(), old.Kind.Icon())
	assert.Equal(t, model.TargetApplications, old.Target())
	assert.Equal(t, "Bourse de mérite", old.MetadataLabel)
	assert.False(t, old.CreatedAt.IsZero())
}

func TestAdapter_FetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"unread": [], "recent": [], "unread_count": 0, "important_count": 0}`))
	}))
	defer srv.Close()

	snap, err := newTestAdapter(t, srv).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Unread)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAdapter_MutationsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "Erreur lors du marquage des notifications"}`))
	}))
	defer srv.Close()

	err := newTestAdapter(t, srv).MarkAllRead(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsRejected(err))
	assert.Contains(t, err.Error(), "Erreur lors du marquage")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAdapter_MutationRoutes(t *testing.T) {
	type call struct{ method, path string }
	var got []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, call{r.Method, r.URL.Path})
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	ctx := context.Background()
	require.NoError(t, a.MarkRead(ctx, "7"))
	require.NoError(t, a.MarkAllRead(ctx))
	require.NoError(t, a.Delete(ctx, "7"))
	require.NoError(t, a.DeleteAll(ctx))

	assert.Equal(t, []call{
		{http.MethodPost, "/api/users/student/notifications/7/read"},
		{http.MethodPost, "/api/users/student/notifications/read-all"},
		{http.MethodDelete, "/api/users/student/notifications/7"},
		{http.MethodPost, "/api/users/student/notifications/delete-all"},
	}, got)
}

func TestAdapter_RejectionsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, `{"error": "Notification non trouvée"}`, source.IsNotFound},
		{"unauthorized", http.StatusUnauthorized, `{"detail": "Non authentifié"}`, source.IsAuthError},
		{"forbidden", http.StatusForbidden, `{"error": "Accès non autorisé"}`, source.IsAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestAdapter(t, srv).Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, tt.check(err), err)
			assert.False(t, source.IsNetworkFailure(err))
			assert.Equal(t, int32(1), calls.Load(), "4xx is permanent")
		})
	}
}

func TestAdapter_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := newTestAdapter(t, srv)
	err := a.MarkRead(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, source.IsNetworkFailure(err))
}

func TestAdapter_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := a.Delete(ctx, "1")
		require.Error(t, err)
		assert.True(t, source.IsRejected(err))
	}

	err := a.Delete(ctx, "1")
	require.Error(t, err)
	assert.True(t, source.IsNetworkFailure(err), "open breaker reads as unreachable")
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 30*time.Minute)
}
