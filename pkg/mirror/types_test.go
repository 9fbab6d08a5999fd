package mirror

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateContent(t *testing.T) {
	assert.Equal(t, "short", TruncateContent("short"))

	exact := strings.Repeat("x", MaxContentLength)
	assert.Equal(t, exact, TruncateContent(exact))

	long := TruncateContent(strings.Repeat("y", 5000))
	assert.Len(t, long, MaxContentLength)
	assert.Equal(t, "...", long[len(long)-3:])

	emoji := TruncateContent(strings.Repeat("🙂", 5000))
	assert.Equal(t, MaxContentLength, utf8.RuneCountInString(emoji))
	assert.True(t, utf8.ValidString(emoji))
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateUnseen, StateOf(nil))
	assert.Equal(t, StateMapped, StateOf(&MessageRecord{}))
	assert.Equal(t, StateEdited, StateOf(&MessageRecord{IsEdited: true}))
	assert.Equal(t, StateDeleted, StateOf(&MessageRecord{IsEdited: true, IsDeleted: true}))
}

func TestAnnotations(t *testing.T) {
	assert.Equal(t, "✏️ Edited:\n\n[Media caption edited]", editAnnotation(""))
	assert.Equal(t, "🗑️ Deleted", deleteAnnotation(false))
	assert.Equal(t, "🔥 View-Once from Her\n\nhi", viewOnceCaption("Her", "hi"))
}
