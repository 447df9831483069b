package handlers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"habitto/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overlapWriter trips a flag if two WriteJSON calls ever run at the same
// time, which the underlying websocket connection forbids.
type overlapWriter struct {
	writing    int32
	overlapped int32
	calls      int32
}

func (w *overlapWriter) WriteJSON(v interface{}) error {
	if !atomic.CompareAndSwapInt32(&w.writing, 0, 1) {
		atomic.StoreInt32(&w.overlapped, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&w.calls, 1)
	atomic.StoreInt32(&w.writing, 0)
	return nil
}

func TestBroadcastPostSerializesWritesPerClient(t *testing.T) {
	const teamID = uint(7)
	writer := &overlapWriter{}
	client := &feedClient{w: writer}

	registerFeedClient(teamID, client)
	defer unregisterFeedClient(teamID, client)

	post := &models.TimelinePost{ID: 1, TeamID: teamID, ReservationID: 1}

	const broadcasts = 16
	var wg sync.WaitGroup
	wg.Add(broadcasts)
	for i := 0; i < broadcasts; i++ {
		go func() {
			defer wg.Done()
			BroadcastPost(post)
		}()
	}
	wg.Wait()

	require.EqualValues(t, broadcasts, atomic.LoadInt32(&writer.calls))
	assert.Zero(t, atomic.LoadInt32(&writer.overlapped),
		"concurrent broadcasts must not write to one connection at the same time")
}

func TestBroadcastPostSkipsOtherTeams(t *testing.T) {
	writer := &overlapWriter{}
	client := &feedClient{w: writer}

	registerFeedClient(3, client)
	defer unregisterFeedClient(3, client)

	BroadcastPost(&models.TimelinePost{ID: 2, TeamID: 4, ReservationID: 2})
	assert.Zero(t, atomic.LoadInt32(&writer.calls))
}
