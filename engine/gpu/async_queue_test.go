package gpu_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/gpu/gputest"
)

func newQueue(t *testing.T, dedicatedTransfer bool) (*gpu.AsyncQueue, *gputest.Backend) {
	t.Helper()
	backend := gputest.NewBackend(dedicatedTransfer)
	queue, err := gpu.NewAsyncQueue(backend)
	require.NoError(t, err)
	t.Cleanup(queue.Close)
	return queue, backend
}

func TestFIFOSubmissionOrder(t *testing.T) {
	queue, backend := newQueue(t, true)

	var lists []gpu.CommandList
	for i := 0; i < 3; i++ {
		command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
		require.NoError(t, err)
		lists = append(lists, command.List)
		require.NoError(t, queue.EndCommand(command, false))
	}

	require.Eventually(t, func() bool {
		return len(backend.Submissions()) == 3
	}, time.Second, time.Millisecond)

	submissions := backend.Submissions()
	for i, submission := range submissions {
		assert.Equal(t, "transfer", submission.Queue)
		require.Len(t, submission.Lists, 1)
		assert.Same(t, lists[i], submission.Lists[0])
	}
}

func TestImmediateSubmitBypassesFIFO(t *testing.T) {
	queue, backend := newQueue(t, true)

	command, err := queue.BeginCommand(gpu.CommandTypeGraphic)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(command, true))

	submissions := backend.Submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, "graphic", submissions[0].Queue)
}

func TestDeferredDegradesToSyncWithoutTransferQueue(t *testing.T) {
	queue, backend := newQueue(t, false)

	command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(command, false))

	// No drain goroutine exists; the submission already happened on the
	// calling goroutine, on the shared graphics queue.
	submissions := backend.Submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, "graphic", submissions[0].Queue)
}

func TestLagByOneBufferRelease(t *testing.T) {
	queue, _ := newQueue(t, true)

	first, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	transient, err := queue.CreateBuffer(first, gpu.BufferTypeBufferUpload, 1, 64)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(first, true))

	// The first submission is in flight; its transient buffer must survive.
	mockBuffer := transient.(*gputest.Buffer)
	assert.False(t, mockBuffer.Destroyed())

	second, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(second, true))

	// Submitting the second command proved the first complete and released
	// its transients.
	assert.True(t, mockBuffer.Destroyed())
}

func TestCommandRecycling(t *testing.T) {
	queue, _ := newQueue(t, true)

	first, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(first, true))

	second, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	// The first command is still in flight; its list must not be reused yet.
	assert.NotSame(t, first.List, second.List)
	require.NoError(t, queue.EndCommand(second, true))

	// Now the first command's slot has been reclaimed: the same underlying
	// command list object comes back from the pool.
	third, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	assert.Same(t, first.List, third.List)
	require.NoError(t, queue.EndCommand(third, true))
}

func TestRecyclingIsPerCommandType(t *testing.T) {
	queue, _ := newQueue(t, true)

	transfer, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(transfer, true))
	graphic, err := queue.BeginCommand(gpu.CommandTypeGraphic)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(graphic, true))
	// The transfer command's slot was reclaimed by the graphic submission,
	// but a graphic begin must not receive the transfer list.
	next, err := queue.BeginCommand(gpu.CommandTypeGraphic)
	require.NoError(t, err)
	assert.NotSame(t, transfer.List, next.List)
	require.NoError(t, queue.EndCommand(next, true))
}

func TestTransientBuffersUploadRoundTrip(t *testing.T) {
	queue, backend := newQueue(t, true)

	destination, err := backend.CreateBuffer(gpu.BufferTypeDeviceStorage, 1, 32, "dest")
	require.NoError(t, err)

	command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	staging, err := queue.CreateBuffer(command, gpu.BufferTypeBufferUpload, 1, 32)
	require.NoError(t, err)
	require.NoError(t, staging.Map())
	payload := []byte("transient staging roundtrip data")
	staging.Write(payload, uint64(len(payload)), 0)
	command.List.Copy(staging, destination)
	require.NoError(t, queue.EndCommand(command, true))

	assert.Equal(t, payload, destination.(*gputest.Buffer).Bytes())
}

func TestCloseReleasesResources(t *testing.T) {
	backend := gputest.NewBackend(true)
	queue, err := gpu.NewAsyncQueue(backend)
	require.NoError(t, err)

	command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	transient, err := queue.CreateBuffer(command, gpu.BufferTypeBufferUpload, 1, 16)
	require.NoError(t, err)
	require.NoError(t, queue.EndCommand(command, true))

	queue.Close()
	assert.True(t, transient.(*gputest.Buffer).Destroyed())

	_, err = queue.BeginCommand(gpu.CommandTypeTransfer)
	assert.Error(t, err)

	// Closing twice is harmless.
	queue.Close()
}

func TestBufferCreationFailurePropagates(t *testing.T) {
	queue, backend := newQueue(t, true)

	command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	backend.FailBufferCreation = true
	_, err = queue.CreateBuffer(command, gpu.BufferTypeBufferUpload, 1, 16)
	assert.Error(t, err)
	backend.FailBufferCreation = false
	require.NoError(t, queue.EndCommand(command, true))
}
