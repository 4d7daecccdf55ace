package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nhle/campusbourses/internal/model"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func note(id string, minutes int, important bool) model.Notification {
	return model.Notification{
		ID:          model.ID(id),
		Kind:        model.KindDocumentVerified,
		Title:       "title " + id,
		CreatedAt:   base.Add(time.Duration(minutes) * time.Minute),
		IsImportant: important,
	}
}

func read(n model.Notification) model.Notification {
	n.IsRead = true
	return n
}

func ids(list []model.Notification) []model.ID {
	out := make([]model.ID, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestReplace_NormalisesUnreadAndDerivesCounts(t *testing.T) {
	s := NewStore()

	a := read(note("a", 3, true)) // backend sent is_read=true in the unread list
	b := note("b", 2, false)
	c := read(note("c", 1, true))

	changed := s.Replace([]model.Notification{a, b}, []model.Notification{a, b, c})
	require.True(t, changed)

	assert.Equal(t, []model.ID{"a", "b"}, ids(s.Unread()))
	for _, n := range s.Unread() {
		assert.False(t, n.IsRead)
	}
	assert.Equal(t, 2, s.UnreadCount())
	assert.Equal(t, 1, s.ImportantCount())

	assert.False(t, s.Replace([]model.Notification{a, b}, []model.Notification{a, b, c}), "same snapshot is not a change")
}

func TestReplace_CopiesInput(t *testing.T) {
	s := NewStore()
	unread := []model.Notification{note("a", 1, false)}
	s.Replace(unread, nil)

	unread[0].Title = "mutated"
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "title a", got.Title)
}

func TestMarkRead(t *testing.T) {
	t.Run("moves unread entry into recent in time order", func(t *testing.T) {
		s := NewStore()
		s.Replace(
			[]model.Notification{note("b", 20, true)},
			[]model.Notification{read(note("c", 30, false)), read(note("a", 10, false))},
		)

		require.True(t, s.MarkRead("b"))

		assert.Empty(t, s.Unread())
		assert.Equal(t, 0, s.ImportantCount())
		assert.Equal(t, []model.ID{"c", "b", "a"}, ids(s.Recent()))
		got, _ := s.Get("b")
		assert.True(t, got.IsRead)
	})

	t.Run("updates the recent copy in place", func(t *testing.T) {
		s := NewStore()
		x := note("x", 1, false)
		s.Replace([]model.Notification{x}, []model.Notification{x})

		require.True(t, s.MarkRead("x"))
		recent := s.Recent()
		require.Len(t, recent, 1)
		assert.True(t, recent[0].IsRead)
	})

	t.Run("absent or already read is a no-op", func(t *testing.T) {
		s := NewStore()
		s.Replace(nil, []model.Notification{read(note("r", 1, false))})
		v := s.Version()

		assert.False(t, s.MarkRead("missing"))
		assert.False(t, s.MarkRead("r"))
		assert.Equal(t, v, s.Version())
	})

	t.Run("idempotent", func(t *testing.T) {
		s := NewStore()
		s.Replace([]model.Notification{note("a", 1, false)}, nil)
		assert.True(t, s.MarkRead("a"))
		assert.False(t, s.MarkRead("a"))
		assert.Len(t, s.Recent(), 1)
	})
}

func TestMarkAllRead(t *testing.T) {
	s := NewStore()
	a := note("a", 3, true)
	b := note("b", 2, true)
	s.Replace([]model.Notification{a, b}, []model.Notification{a, read(note("old", 1, false))})

	require.True(t, s.MarkAllRead())

	assert.Empty(t, s.Unread())
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, s.ImportantCount())
	assert.Equal(t, []model.ID{"a", "b", "old"}, ids(s.Recent()))
	for _, n := range s.Recent() {
		assert.True(t, n.IsRead, n.ID)
	}

	assert.False(t, s.MarkAllRead(), "second call changes nothing")
}

func TestRemove(t *testing.T) {
	s := NewStore()
	a := note("a", 2, false)
	s.Replace([]model.Notification{a}, []model.Notification{a, read(note("b", 1, false))})

	assert.True(t, s.Remove("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, []model.ID{"b"}, ids(s.Recent()))

	assert.True(t, s.Remove("b"), "read entries are removable too")
	assert.False(t, s.Remove("b"))
}

func TestRemoveAll(t *testing.T) {
	s := NewStore()
	assert.False(t, s.RemoveAll())

	s.Replace([]model.Notification{note("a", 1, false)}, []model.Notification{read(note("b", 0, false))})
	assert.True(t, s.RemoveAll())
	assert.Empty(t, s.Unread())
	assert.Empty(t, s.Recent())
	assert.Empty(t, s.All())
}

func TestImportantAndAllViews(t *testing.T) {
	s := NewStore()
	onlyUnread := note("u", 5, true)
	both := note("b", 4, false)
	s.Replace(
		[]model.Notification{onlyUnread, both},
		[]model.Notification{both, read(note("r", 1, true))},
	)

	assert.Equal(t, []model.ID{"b", "r", "u"}, ids(s.All()))
	assert.Equal(t, []model.ID{"r", "u"}, ids(s.Important()))
	assert.Equal(t, 1, s.ImportantCount(), "important count only covers unread entries")
}

func TestSubscribe_CoalescesSignals(t *testing.T) {
	s := NewStore()
	ch, unsubscribe := s.Subscribe()

	s.Replace([]model.Notification{note("a", 1, false)}, nil)
	s.MarkRead("a")

	select {
	case <-ch:
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	unsubscribe()
	unsubscribe()
	s.RemoveAll()
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a signal")
	default:
	}
}

// testStoreMachine drives random operation sequences and checks that the
// counts always follow the lists.
func testStoreMachine(t *rapid.T) {
	s := NewStore()
	idGen := rapid.SampledFrom([]string{"1", "2", "3", "4", "5", "6"})

	drawNotes := func(t *rapid.T, label string) []model.Notification {
		picked := rapid.SliceOfDistinct(idGen, func(id string) string { return id }).Draw(t, label)
		out := make([]model.Notification, 0, len(picked))
		for _, id := range picked {
			n := note(id, rapid.IntRange(0, 100).Draw(t, "minutes"), rapid.Bool().Draw(t, "important"))
			n.IsRead = rapid.Bool().Draw(t, "read")
			out = append(out, n)
		}
		return out
	}

	t.Repeat(map[string]func(*rapid.T){
		"replace": func(t *rapid.T) {
			s.Replace(drawNotes(t, "unread"), drawNotes(t, "recent"))
		},
		"mark_read": func(t *rapid.T) {
			id := model.ID(idGen.Draw(t, "id"))
			s.MarkRead(id)
			if s.MarkRead(id) {
				t.Fatalf("second MarkRead(%s) reported a change", id)
			}
			if _, ok := s.Get(id); ok {
				for _, n := range s.Unread() {
					if n.ID == id {
						t.Fatalf("%s still unread after MarkRead", id)
					}
				}
			}
		},
		"mark_all_read": func(t *rapid.T) {
			s.MarkAllRead()
			if s.MarkAllRead() {
				t.Fatal("MarkAllRead is not idempotent")
			}
			if s.ImportantCount() != 0 {
				t.Fatalf("important count %d after MarkAllRead", s.ImportantCount())
			}
		},
		"remove": func(t *rapid.T) {
			id := model.ID(idGen.Draw(t, "id"))
			s.Remove(id)
			if _, ok := s.Get(id); ok {
				t.Fatalf("%s still present after Remove", id)
			}
		},
		"remove_all": func(t *rapid.T) {
			s.RemoveAll()
		},
		"": func(t *rapid.T) {
			unread := s.Unread()
			if s.UnreadCount() != len(unread) {
				t.Fatalf("unread count %d, list has %d", s.UnreadCount(), len(unread))
			}
			important := 0
			for _, n := range unread {
				if n.IsRead {
					t.Fatalf("%s is in the unread view with IsRead=true", n.ID)
				}
				if n.IsImportant {
					important++
				}
			}
			if s.ImportantCount() != important {
				t.Fatalf("important count %d, want %d", s.ImportantCount(), important)
			}
			seen := map[model.ID]bool{}
			for _, n := range s.Recent() {
				if seen[n.ID] {
					t.Fatalf("duplicate %s in recent view", n.ID)
				}
				seen[n.ID] = true
			}
		},
	})
}

func TestStore_Properties(t *testing.T) {
	rapid.Check(t, testStoreMachine)
}
