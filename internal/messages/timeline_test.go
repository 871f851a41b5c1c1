package messages

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timelineMsg(owner uuid.UUID, bot bool, at time.Time) *Message {
	return &Message{OwnerID: owner, IsBotMessage: bot, CreatedAt: at}
}

func TestBuildTimelineContinuation(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	msgs := []*Message{
		timelineMsg(owner, false, base),
		timelineMsg(owner, false, base.Add(30*time.Second)),
		timelineMsg(owner, false, base.Add(3*time.Minute)),
		timelineMsg(other, false, base.Add(3*time.Minute+10*time.Second)),
	}

	BuildTimeline(msgs)

	assert.False(t, msgs[0].IsContinuation)
	assert.True(t, msgs[1].IsContinuation, "same owner within the window")
	assert.False(t, msgs[2].IsContinuation, "window expired")
	assert.False(t, msgs[3].IsContinuation, "different owner")
}

func TestBuildTimelineBotNeverContinuesHuman(t *testing.T) {
	owner := uuid.New()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	msgs := []*Message{
		timelineMsg(owner, false, base),
		timelineMsg(owner, true, base.Add(10*time.Second)),
	}
	BuildTimeline(msgs)
	assert.False(t, msgs[1].IsContinuation)
}

func TestBuildTimelineInsertsDateHeaders(t *testing.T) {
	owner := uuid.New()
	day1 := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 0, 30, 0, time.UTC)

	blocks := BuildTimeline([]*Message{
		timelineMsg(owner, false, day1),
		timelineMsg(owner, false, day2),
	})

	require.Len(t, blocks, 4)
	assert.Equal(t, BlockDate, blocks[0].Type)
	assert.Equal(t, "2026-03-14", blocks[0].Date)
	assert.Equal(t, BlockMessage, blocks[1].Type)
	assert.Equal(t, BlockDate, blocks[2].Type)
	assert.Equal(t, "2026-03-15", blocks[2].Date)

	// Crossing midnight still counts as a continuation when inside the window.
	assert.True(t, blocks[3].Message.IsContinuation)
}

func TestBuildTimelineEmpty(t *testing.T) {
	assert.Empty(t, BuildTimeline(nil))
}
