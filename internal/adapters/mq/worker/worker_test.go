package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/cryptoheroes/internal/adapters/mq/queue"
	"github.com/okian/cryptoheroes/internal/adapters/mq/worker"
	"github.com/okian/cryptoheroes/internal/adapters/repository"
	"github.com/okian/cryptoheroes/internal/domain/model"
	logging "github.com/okian/cryptoheroes/pkg/logger"
)

type mockRecorder struct {
	mu       sync.Mutex
	recorded map[string]model.GameResult
	errors   map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		recorded: make(map[string]model.GameResult),
		errors:   make(map[string]error),
	}
}

func (m *mockRecorder) Record(ctx context.Context, res model.GameResult) (model.Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[res.BattleID]; ok {
		return model.Standing{}, err
	}
	m.recorded[res.BattleID] = res
	return model.Standing{PlayerID: res.PlayerID, Score: res.Outcome.Points(), Rank: 1}, nil
}

func (m *mockRecorder) setError(battleID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[battleID] = err
}

func (m *mockRecorder) has(battleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recorded[battleID]
	return ok
}

type published struct {
	res model.GameResult
	st  model.Standing
}

type chanPublisher chan published

func (c chanPublisher) Publish(res model.GameResult, st model.Standing) {
	c <- published{res: res, st: st}
}

func gameResult(id string) model.GameResult {
	return model.GameResult{
		BattleID:            id,
		PlayerID:            "alice",
		PlayerCharacterID:   "bitcoin",
		OpponentCharacterID: "dogecoin",
		Outcome:             model.OutcomeWin,
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newMockRecorder()
		pub := make(chanPublisher, 10)
		w := worker.NewInMemoryWorker(q, rec,
			worker.WithName("test-worker"),
			worker.WithLogger(logging.Nop()),
			worker.WithPublisher(pub),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a result is enqueued", func() {
			convey.So(q.Enqueue(ctx, gameResult("b1")), convey.ShouldBeNil)

			var got published
			select {
			case got = <-pub:
			case <-time.After(time.Second):
			}

			convey.Convey("Then it is recorded and published with the standing", func() {
				convey.So(rec.has("b1"), convey.ShouldBeTrue)
				convey.So(got.res.BattleID, convey.ShouldEqual, "b1")
				convey.So(got.st.Score, convey.ShouldEqual, 3)
				convey.So(int(w.Processed()), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When recording fails", func() {
			rec.setError("b2", errors.New("disk full"))
			convey.So(q.Enqueue(ctx, gameResult("b2")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, gameResult("b3")), convey.ShouldBeNil)

			var got published
			select {
			case got = <-pub:
			case <-time.After(time.Second):
			}

			convey.Convey("Then the failure is skipped and the worker keeps going", func() {
				convey.So(rec.has("b2"), convey.ShouldBeFalse)
				convey.So(got.res.BattleID, convey.ShouldEqual, "b3")
			})
		})

		convey.Convey("When the result is a duplicate", func() {
			rec.setError("b4", fmt.Errorf("wrapped: %w", repository.ErrDuplicateBattle))
			convey.So(q.Enqueue(ctx, gameResult("b4")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, gameResult("b5")), convey.ShouldBeNil)

			var got published
			select {
			case got = <-pub:
			case <-time.After(time.Second):
			}

			convey.Convey("Then nothing is published for it", func() {
				convey.So(got.res.BattleID, convey.ShouldEqual, "b5")
				convey.So(int(w.Processed()), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the worker is stopped", func() {
			w.Stop()
			w.Stop()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given a worker whose context is canceled", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, newMockRecorder(), worker.WithLogger(logging.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		convey.Convey("Then Run returns", func() {
			select {
			case <-w.Done():
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker did not stop", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool recording into a treap store", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer store.Close()

		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		pool := worker.NewPool(4, q, store, worker.WithPoolLogger(logging.Nop()))
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When results are enqueued and the pool shuts down", func() {
			for i := range 300 {
				res := gameResult(fmt.Sprintf("b%d", i))
				res.PlayerID = fmt.Sprintf("p%d", i%5)
				convey.So(q.Enqueue(ctx, res), convey.ShouldBeNil)
			}
			// duplicate battle id
			convey.So(q.Enqueue(ctx, gameResult("b0")), convey.ShouldBeNil)

			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued result is drained into the store", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(int(pool.Processed()), convey.ShouldEqual, 300)
				convey.So(store.Count(ctx), convey.ShouldEqual, 5)

				top, err := store.TopN(ctx, 5)
				convey.So(err, convey.ShouldBeNil)
				total := 0
				for _, st := range top {
					total += st.Wins
				}
				convey.So(total, convey.ShouldEqual, 300)
			})

			convey.Convey("Then the queue rejects new results", func() {
				convey.So(q.Enqueue(ctx, gameResult("late")), convey.ShouldEqual, queue.ErrClosed)
			})
		})
	})

	convey.Convey("Given a pool created with a non-positive size", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockRecorder(), worker.WithPoolLogger(logging.Nop()))

		convey.Convey("Then it scales with the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
