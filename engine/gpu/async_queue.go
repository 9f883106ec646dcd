package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/containers"
	"github.com/vanta-engine/vanta/engine/core"
)

// Command is one recorded unit of GPU work. Callers obtain it from
// BeginCommand, record onto List, then hand it back through EndCommand.
type Command struct {
	// Location is the begin call site, kept for debugging resource leaks.
	Location  string
	Type      CommandType
	List      CommandList
	Allocator CommandAllocator
}

// AsyncQueue decouples command submission from the render loop. Deferred
// commands are drained in FIFO order by a single background goroutine, all
// submissions serialize through one shared fence, and transient buffers tied
// to a command list stay alive until the following submission proves the
// previous one has completed (lag-by-one release).
type AsyncQueue struct {
	backend       Backend
	graphicQueue  SubmitQueue
	transferQueue SubmitQueue

	// Guards pending, freeCommands and quit; cond wakes the drain goroutine.
	commandsMu   sync.Mutex
	cond         *sync.Cond
	pending      *containers.Queue[Command]
	freeCommands [commandTypeCount]containers.Queue[Command]
	quit         bool

	// Serializes submit between the immediate path and the drain goroutine.
	submitMu    sync.Mutex
	submitFence Fence
	previous    Command

	// Transient buffers keyed by the command list they were recorded for.
	buffersMu sync.Mutex
	buffers   map[CommandList][]Buffer

	started bool
	done    chan struct{}
}

// NewAsyncQueue creates the queue and, when the device exposes a dedicated
// transfer queue, starts the background submission goroutine. Without one,
// deferred commands are submitted synchronously on the calling thread.
func NewAsyncQueue(backend Backend) (*AsyncQueue, error) {
	fence, err := backend.CreateFence(true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create submit fence")
	}
	q := &AsyncQueue{
		backend:       backend,
		graphicQueue:  backend.GraphicQueue(),
		transferQueue: backend.TransferQueue(),
		pending:       containers.NewQueue[Command](16),
		submitFence:   fence,
		buffers:       make(map[CommandList][]Buffer),
		done:          make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.commandsMu)
	if backend.HasDedicatedTransferQueue() {
		q.started = true
		go q.run()
	} else {
		close(q.done)
	}
	return q, nil
}

func (q *AsyncQueue) run() {
	defer close(q.done)
	for {
		q.commandsMu.Lock()
		for !q.quit && q.pending.IsEmpty() {
			q.cond.Wait()
		}
		command, ok := q.pending.Dequeue()
		quit := q.quit
		q.commandsMu.Unlock()
		if ok {
			if err := q.submit(command); err != nil {
				// Submission failure is not recoverable; see the error
				// taxonomy in the package docs.
				core.LogError("async submit failed: %s", err.Error())
			}
		}
		if quit {
			return
		}
	}
}

// submit waits on the shared fence, releases the resources of the previous
// submission (which the wait has just proven complete), then submits the
// command list on its hardware queue with the same fence.
func (q *AsyncQueue) submit(command Command) error {
	q.submitMu.Lock()
	defer q.submitMu.Unlock()

	q.submitFence.Wait()
	if err := q.submitFence.Reset(); err != nil {
		return errors.Wrap(err, "failed to reset submit fence")
	}
	if q.previous.List != nil {
		q.releaseTransientBuffers(q.previous.List)
		q.commandsMu.Lock()
		q.freeCommands[q.previous.Type].Enqueue(q.previous)
		q.commandsMu.Unlock()
	}
	var err error
	if command.Type == CommandTypeGraphic {
		err = q.graphicQueue.Submit(q.submitFence, command.List)
	} else {
		err = q.transferQueue.Submit(q.submitFence, command.List)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to submit %s command from %s", command.Type, command.Location)
	}
	q.previous = command
	core.MetricsAddSubmission()
	return nil
}

func (q *AsyncQueue) releaseTransientBuffers(list CommandList) {
	q.buffersMu.Lock()
	defer q.buffersMu.Unlock()
	for _, buffer := range q.buffers[list] {
		buffer.Destroy()
	}
	delete(q.buffers, list)
}

// CreateBuffer allocates a transient backend buffer tied to the command: it
// is destroyed only once the command list's slot is reclaimed by a later
// submission, never while the recorded work may still reference it.
func (q *AsyncQueue) CreateBuffer(command Command, bufferType BufferType, instanceSize, instanceCount uint64) (Buffer, error) {
	buffer, err := q.backend.CreateBuffer(bufferType, instanceSize, instanceCount, "transient "+command.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create transient %s buffer", bufferType)
	}
	q.buffersMu.Lock()
	q.buffers[command.List] = append(q.buffers[command.List], buffer)
	q.buffersMu.Unlock()
	return buffer, nil
}

// BeginCommand returns a command of the requested type, recycling a
// previously submitted one when the free pool has it. The caller must pair
// every BeginCommand with one EndCommand for the same command before
// beginning another command of the same type.
func (q *AsyncQueue) BeginCommand(commandType CommandType) (Command, error) {
	q.commandsMu.Lock()
	if q.quit {
		q.commandsMu.Unlock()
		return Command{}, core.ErrQueueClosed
	}
	command, ok := q.freeCommands[commandType].Dequeue()
	q.commandsMu.Unlock()

	if !ok {
		allocator, err := q.backend.CreateCommandAllocator(commandType)
		if err != nil {
			return Command{}, errors.Wrapf(err, "failed to create %s command allocator", commandType)
		}
		list, err := allocator.CreateCommandList()
		if err != nil {
			return Command{}, errors.Wrapf(err, "failed to create %s command list", commandType)
		}
		if err := list.Begin(); err != nil {
			return Command{}, errors.Wrap(err, "failed to begin command list")
		}
		return Command{
			Location:  callerLocation(),
			Type:      commandType,
			List:      list,
			Allocator: allocator,
		}, nil
	}

	// The lag-by-one policy guarantees the recycled list has completed, so
	// resetting its allocator is safe here.
	if err := command.Allocator.Reset(); err != nil {
		return Command{}, errors.Wrap(err, "failed to reset command allocator")
	}
	if err := command.List.Begin(); err != nil {
		return Command{}, errors.Wrap(err, "failed to begin recycled command list")
	}
	command.Location = callerLocation()
	core.MetricsAddCommandReuse()
	return command, nil
}

// EndCommand ends recording. With immediate set the command is submitted on
// the calling thread; otherwise it joins the FIFO and the background
// goroutine is woken for transfer work. When no background goroutine exists
// the deferred path degrades to a synchronous submit.
func (q *AsyncQueue) EndCommand(command Command, immediate bool) error {
	if err := command.List.End(); err != nil {
		return errors.Wrap(err, "failed to end command list")
	}
	if immediate || !q.started {
		return q.submit(command)
	}
	q.commandsMu.Lock()
	if q.quit {
		q.commandsMu.Unlock()
		return core.ErrQueueClosed
	}
	q.pending.Enqueue(command)
	if command.Type == CommandTypeTransfer {
		q.cond.Signal()
	}
	q.commandsMu.Unlock()
	return nil
}

// Close stops the drain goroutine, waits for the last in-flight submission
// and releases every pooled command and tracked buffer.
func (q *AsyncQueue) Close() {
	q.commandsMu.Lock()
	if q.quit {
		q.commandsMu.Unlock()
		return
	}
	q.quit = true
	q.cond.Broadcast()
	q.commandsMu.Unlock()
	<-q.done

	// The fence must be waited before releasing command lists; the last
	// submission may still be executing on the device.
	q.submitFence.Wait()

	q.commandsMu.Lock()
	if q.previous.List != nil {
		q.releaseTransientBuffers(q.previous.List)
		q.previous.Allocator.Destroy()
		q.previous = Command{}
	}
	q.pending.Drain(func(command Command) {
		q.releaseTransientBuffers(command.List)
		command.Allocator.Destroy()
	})
	for commandType := range q.freeCommands {
		q.freeCommands[commandType].Drain(func(command Command) {
			command.Allocator.Destroy()
		})
	}
	q.commandsMu.Unlock()

	q.submitFence.Destroy()
}

func callerLocation() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return fmt.Sprintf("%s line %d", fn.Name(), line)
}
