package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campusbourses/internal/model"
)

func TestApply(t *testing.T) {
	t.Cleanup(func() { _ = Apply(Default) })

	require.NoError(t, Apply(Mono))
	assert.Equal(t, lipgloss.NoColor{}, HeaderStyle.GetBackground())
	assert.Equal(t, lipgloss.NoColor{}, KindStyle(model.KindDocumentRejected).GetForeground())

	require.NoError(t, Apply(""))
	assert.Equal(t, ColorBlue, HeaderStyle.GetBackground())
	assert.Equal(t, ColorRed, KindStyle(model.KindDocumentRejected).GetForeground())

	assert.Error(t, Apply("neon"))
}
