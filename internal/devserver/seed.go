package devserver

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/store"
)

func ref(s string) *string { return &s }

func demoNotifications(now time.Time) []store.Notification {
	student, admin := string(model.ScopeStudent), string(model.ScopeAdmin)
	return []store.Notification{
		{
			Audience: student, Kind: string(model.KindDocumentVerified),
			Title:             "Document vérifié",
			Message:           "Votre relevé de notes a été vérifié.",
			RelatedDocumentID: ref("14"), MetadataLabel: "Relevé de notes",
			CreatedAt: now.Add(-5 * time.Minute),
		},
		{
			Audience: student, Kind: string(model.KindDocumentRejected),
			Title:             "Document rejeté",
			Message:           "Votre pièce d'identité est illisible. Merci de la renvoyer.",
			IsImportant:       true,
			RelatedDocumentID: ref("15"), MetadataLabel: "Pièce d'identité",
			CreatedAt: now.Add(-3 * time.Hour),
		},
		{
			Audience: student, Kind: string(model.KindApplicationApproved),
			Title:                "Candidature approuvée",
			Message:              "Félicitations, votre candidature a été approuvée.",
			IsImportant:          true,
			RelatedApplicationID: ref("3"), MetadataLabel: "Bourse d'excellence 2024",
			CreatedAt: now.Add(-26 * time.Hour),
		},
		{
			Audience: student, Kind: string(model.KindDeadlineReminder),
			Title:     "Date limite proche",
			Message:   "La date limite de dépôt est dans 3 jours.",
			CreatedAt: now.Add(-4 * 24 * time.Hour),
			IsRead:    true,
		},
		{
			Audience: admin, Kind: string(model.KindDocumentUpload),
			Title:             "Nouveau document",
			Message:           "Amina Diallo a déposé un document.",
			RelatedDocumentID: ref("16"),
			ActorName:         "Amina Diallo", MetadataLabel: "Relevé de notes",
			CreatedAt: now.Add(-2 * time.Minute),
		},
		{
			Audience: admin, Kind: string(model.KindApplicationSubmitted),
			Title:                "Nouvelle candidature",
			Message:              "Karim Benali a soumis une candidature.",
			IsImportant:          true,
			RelatedApplicationID: ref("7"),
			ActorName:            "Karim Benali",
			CreatedAt:            now.Add(-40 * time.Minute),
		},
		{
			Audience: admin, Kind: string(model.KindUserRegistered),
			Title:     "Nouvel utilisateur",
			Message:   "Un nouvel étudiant s'est inscrit.",
			ActorName: "Lina Haddad",
			CreatedAt: now.Add(-2 * 24 * time.Hour),
			IsRead:    true,
		},
	}
}

// Seed inserts demo notifications for both audiences. Audiences that
// already have notifications are left alone. It returns how many rows were
// inserted.
func Seed(ctx context.Context, st store.Store, now time.Time) (int, error) {
	populated := map[string]bool{}
	for _, scope := range []model.Scope{model.ScopeStudent, model.ScopeAdmin} {
		count, err := st.CountNotifications(ctx, string(scope))
		if err != nil {
			return 0, fmt.Errorf("counting %s notifications: %w", scope, err)
		}
		populated[string(scope)] = count > 0
	}

	inserted := 0
	for _, n := range demoNotifications(now) {
		if populated[n.Audience] {
			continue
		}
		if _, err := st.CreateNotification(ctx, n); err != nil {
			return inserted, fmt.Errorf("seeding %q: %w", n.Title, err)
		}
		inserted++
	}
	return inserted, nil
}
