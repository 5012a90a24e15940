package workerPool

import (
	"runtime"
	"sync"
)

type WorkerPool struct {
	config    Config
	taskQueue chan Task
	closeOnce sync.Once
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

// Room groups tasks so a caller can wait for just its own work.
type Room struct {
	wg sync.WaitGroup
	wp *WorkerPool
}

type Task struct {
	run  func()
	room *Room
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU()
	}

	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 1000
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.GlobalBuffer),
	}

	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	for t := range wp.taskQueue {
		t.run()
		t.room.wg.Done()
	}
}

func (wp *WorkerPool) WorkerCount() int {
	return wp.config.WorkerCount
}

// Close stops the workers once queued tasks are done. No task may be added
// after Close.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.taskQueue)
	})
}

func (wp *WorkerPool) CreateRoom() *Room {
	return &Room{wp: wp}
}

// NewTask queues job, blocking while the global buffer is full.
func (ro *Room) NewTask(job func()) {
	ro.wg.Add(1)
	ro.wp.taskQueue <- Task{run: job, room: ro}
}

// Wait blocks until every task of the room has run.
func (ro *Room) Wait() {
	ro.wg.Wait()
}
