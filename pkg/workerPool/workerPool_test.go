package workerPool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoom_WaitRunsEveryTask(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 4, GlobalBuffer: 8})
	defer wp.Close()

	var sum atomic.Int64
	room := wp.CreateRoom()
	for i := 1; i <= 100; i++ {
		n := int64(i)
		room.NewTask(func() { sum.Add(n) })
	}
	room.Wait()

	assert.Equal(t, int64(5050), sum.Load())
}

func TestRoom_Independent(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 2})
	defer wp.Close()

	results := make([]int, 10)
	a := wp.CreateRoom()
	b := wp.CreateRoom()
	for i := 0; i < 5; i++ {
		i := i
		a.NewTask(func() { results[i] = i * i })
		b.NewTask(func() { results[i+5] = (i + 5) * (i + 5) })
	}
	a.Wait()
	b.Wait()

	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestNewWorkerPool_Defaults(t *testing.T) {
	wp := NewWorkerPool(Config{})
	defer wp.Close()

	assert.GreaterOrEqual(t, wp.WorkerCount(), 1)
	assert.Equal(t, 1000, cap(wp.taskQueue))

	wp.Close()
}
