package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontmatter_RoundTrip(t *testing.T) {
	pos := 2
	fm := Frontmatter{
		ID:         "en1",
		SessionID:  "s1",
		TemplateID: "tpl-default",
		Position:   &pos,
		Title:      "Summary",
	}
	doc, err := encodeFrontmatterDoc(fm, "# Summary\n\nbody text\n")
	require.NoError(t, err)

	got, body, err := decodeFrontmatterDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, fm, got)
	assert.Equal(t, "# Summary\n\nbody text\n", body)
}

func TestFrontmatter_EmptyBody(t *testing.T) {
	doc, err := encodeFrontmatterDoc(Frontmatter{ID: "tr1", SessionID: "s1"}, "")
	require.NoError(t, err)

	fm, body, err := decodeFrontmatterDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, "tr1", fm.ID)
	assert.Equal(t, "s1", fm.SessionID)
	assert.Equal(t, "", body)
}

func TestDecodeFrontmatter_MissingOpeningFence(t *testing.T) {
	_, _, err := decodeFrontmatterDoc("id: tr1\nplain text\n")
	require.Error(t, err)
}

func TestDecodeFrontmatter_MissingClosingFence(t *testing.T) {
	_, _, err := decodeFrontmatterDoc("---\nid: tr1\nno closing fence\n")
	require.Error(t, err)
}

func TestDecodeFrontmatter_ClosingFenceAtEOF(t *testing.T) {
	fm, body, err := decodeFrontmatterDoc("---\nid: tr1\nsession_id: s1\n---")
	require.NoError(t, err)
	assert.Equal(t, "tr1", fm.ID)
	assert.Equal(t, "s1", fm.SessionID)
	assert.Equal(t, "", body)
}
