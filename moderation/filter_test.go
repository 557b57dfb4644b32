package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	filter, err := NewFilter([]string{"badword", "verboten"}, '*')
	require.NoError(t, err)
	return filter
}

func TestFilter_MasksExactWord(t *testing.T) {
	req := require.New(t)
	filter := newTestFilter(t)

	req.Equal("this ******* is masked", filter.Mask("this badword is masked"))
}

func TestFilter_CaseInsensitive(t *testing.T) {
	req := require.New(t)
	filter := newTestFilter(t)

	req.Equal("*******!", filter.Mask("BadWord!"))
}

func TestFilter_SeparatorEvasionStillMasked(t *testing.T) {
	req := require.New(t)
	filter := newTestFilter(t)

	// Dots between letters must not defeat the match; everything from
	// the first to the last matched rune is masked
	masked := filter.Mask("b.a.d.w.o.r.d here")
	req.Equal("************* here", masked)
}

func TestFilter_CleanTextUntouched(t *testing.T) {
	req := require.New(t)
	filter := newTestFilter(t)

	clean := "nothing wrong in this sentence"
	req.Equal(clean, filter.Mask(clean))
}

func TestFilter_EmptyAndSymbolOnlyText(t *testing.T) {
	req := require.New(t)
	filter := newTestFilter(t)

	req.Equal("", filter.Mask(""))
	req.Equal("!!! ???", filter.Mask("!!! ???"))
}

func TestLoadCensoredWords(t *testing.T) {
	req := require.New(t)

	data, err := LoadCensoredWords()

	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
}
