package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/rollcall/internal/adapters/mq/queue"
	worker "github.com/okian/rollcall/internal/adapters/mq/worker"
	model "github.com/okian/rollcall/internal/domain/model"
	logging "github.com/okian/rollcall/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockSyncer fails each job id a configured number of times before succeeding.
type mockSyncer struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	attempts map[string][]int
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		attempts: make(map[string][]int),
	}
}

func (m *mockSyncer) Sync(_ context.Context, job model.SyncJob) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[job.ID]++
	m.attempts[job.ID] = append(m.attempts[job.ID], job.Attempt)
	if m.failures[job.ID] > 0 {
		m.failures[job.ID]--
		return 0, errors.New("log api unavailable")
	}
	return 3, nil
}

func (m *mockSyncer) failTimes(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = n
}

func (m *mockSyncer) callCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func (m *mockSyncer) attemptsOf(id string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.attempts[id]...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPool(t *testing.T) {
	convey.Convey("Given a running worker pool", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		syncer := newMockSyncer()
		pool := worker.NewPool(2, q, syncer,
			worker.WithMaxAttempts(3),
			worker.WithRetryBackoff(time.Millisecond),
		)
		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)

		convey.Reset(func() {
			_ = pool.Shutdown(context.Background())
			cancel()
		})

		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("When a job succeeds", func() {
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: "job-ok", Attempt: 1}), convey.ShouldBeNil)

			convey.Convey("Then it is synced once", func() {
				convey.So(waitFor(func() bool { return syncer.callCount("job-ok") == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the same job id is delivered twice", func() {
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: "job-dup", Attempt: 1}), convey.ShouldBeNil)
			convey.So(waitFor(func() bool { return syncer.callCount("job-dup") == 1 }), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: "job-dup", Attempt: 1}), convey.ShouldBeNil)

			convey.Convey("Then the second delivery is skipped", func() {
				convey.So(waitFor(func() bool { return q.Len(ctx) == 0 }), convey.ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				convey.So(syncer.callCount("job-dup"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a job fails once", func() {
			syncer.failTimes("job-flaky", 1)
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: "job-flaky"}), convey.ShouldBeNil)

			convey.Convey("Then it is retried with the next attempt number", func() {
				convey.So(waitFor(func() bool { return syncer.callCount("job-flaky") == 2 }), convey.ShouldBeTrue)
				convey.So(syncer.attemptsOf("job-flaky"), convey.ShouldResemble, []int{1, 2})
			})
		})

		convey.Convey("When a job keeps failing", func() {
			syncer.failTimes("job-bad", 10)
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: "job-bad", Attempt: 1}), convey.ShouldBeNil)

			convey.Convey("Then it gives up after the attempt cap", func() {
				convey.So(waitFor(func() bool { return syncer.callCount("job-bad") == 3 }), convey.ShouldBeTrue)
				time.Sleep(30 * time.Millisecond)
				convey.So(syncer.callCount("job-bad"), convey.ShouldEqual, 3)
			})
		})
	})
}

func TestPoolShutdown(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(3, q, newMockSyncer())
		pool.Start(context.Background())

		convey.Convey("When it shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(q.Enqueue(context.Background(), model.SyncJob{ID: "late"}), convey.ShouldEqual, queue.ErrQueueClosed)
			})
		})
	})
}

func TestShutdownDrainsQueue(t *testing.T) {
	convey.Convey("Given jobs buffered before the pool starts", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		syncer := newMockSyncer()
		for _, id := range []string{"a", "b", "c"} {
			convey.So(q.Enqueue(ctx, model.SyncJob{ID: id, Attempt: 1}), convey.ShouldBeNil)
		}
		pool := worker.NewPool(1, q, syncer)

		convey.Convey("When the pool shuts down right after starting", func() {
			pool.Start(ctx)
			err := pool.Shutdown(ctx)

			convey.Convey("Then every buffered job still runs", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, id := range []string{"a", "b", "c"} {
					convey.So(syncer.callCount(id), convey.ShouldEqual, 1)
				}
			})
		})
	})

	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, newMockSyncer())
		go w.Run(ctx)

		convey.Convey("Then repeated shutdowns do not panic", func() {
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(func() { _ = w.Shutdown(ctx) }, convey.ShouldNotPanic)
		})
	})
}

func TestWorkerShutdownTimeout(t *testing.T) {
	convey.Convey("Given a worker that was never run", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), newMockSyncer(), worker.WithName("idle"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		convey.Convey("Then shutdown reports the timeout", func() {
			err := w.Shutdown(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}
