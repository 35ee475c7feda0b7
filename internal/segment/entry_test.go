package segment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/vvspeak/internal/segment"
)

func TestEntry_StartsUnresolved(t *testing.T) {
	e := segment.New(0, "こんにちは", "key1")
	assert.False(t, e.IsReady())
	assert.False(t, e.IsFailed())
}

func TestEntry_MarkReadyPublishesAudio(t *testing.T) {
	e := segment.New(0, "こんにちは", "key1")
	e.MarkReady([]byte{1, 2, 3})
	assert.True(t, e.IsReady())
	assert.Equal(t, []byte{1, 2, 3}, e.Audio())
}

func TestEntry_MarkFailedDoesNotSetReady(t *testing.T) {
	e := segment.New(0, "こんにちは", "key1")
	e.MarkFailed()
	assert.True(t, e.IsFailed())
	assert.False(t, e.IsReady())
}
