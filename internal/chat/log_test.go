package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendKeepsInsertionOrder(t *testing.T) {
	l := NewLog()

	first := l.Append("hello", SenderUser, CategoryUserText)
	second := l.Append("hi there", SenderBot, CategoryBotText)

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUpsertByCategoryReplaces(t *testing.T) {
	l := NewLog()

	l.Append("question", SenderUser, CategoryUserText)
	l.UpsertByCategory(CategorySystemInit, "session started v1")
	l.Append("another question", SenderUser, CategoryUserText)
	l.UpsertByCategory(CategorySystemInit, "session started v2")

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	// The stale announcement is gone; the new one sits at the end.
	assert.Equal(t, "session started v2", msgs[2].Text)
	for _, m := range msgs[:2] {
		assert.NotEqual(t, CategorySystemInit, m.Category)
	}
}

func TestUpsertByCategoryDoesNotTouchOtherCategories(t *testing.T) {
	l := NewLog()

	l.UpsertByCategory(CategorySystemStyleChange, "style changed")
	l.UpsertByCategory(CategorySystemError, "error one")
	l.UpsertByCategory(CategorySystemError, "error one")

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "style changed", msgs[0].Text)
	assert.Equal(t, "error one", msgs[1].Text)
}

func TestAppendToEntry(t *testing.T) {
	l := NewLog()

	bot := l.Append("...", SenderBot, CategoryBotText)
	require.True(t, l.SetEntryText(bot.ID, ""))
	require.True(t, l.AppendToEntry(bot.ID, "안녕"))
	require.True(t, l.AppendToEntry(bot.ID, "하세요"))

	msgs := l.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "안녕하세요", msgs[0].Text)

	assert.False(t, l.AppendToEntry("missing", "x"))
	assert.False(t, l.SetEntryText("missing", "x"))
}

func TestClear(t *testing.T) {
	l := NewLog()

	msg := l.Append("hello", SenderUser, CategoryUserText)
	l.Clear()

	assert.Empty(t, l.Messages())
	assert.False(t, l.SetEntryText(msg.ID, "gone"))
}

func TestMessagesReturnsSnapshot(t *testing.T) {
	l := NewLog()

	bot := l.Append("partial", SenderBot, CategoryBotText)
	snapshot := l.Messages()
	l.SetEntryText(bot.ID, "full")

	// The earlier snapshot must not observe the later mutation.
	assert.Equal(t, "partial", snapshot[0].Text)
	assert.Equal(t, "full", l.Messages()[0].Text)
}
