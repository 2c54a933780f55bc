package frontier

import (
	"context"
	"sync"
)

// TaskKind selects the variant of a frontier task.
type TaskKind int

const (
	// TaskRecommendPage fetches one page of recommended players. No payload.
	TaskRecommendPage TaskKind = iota
	// TaskBattleHistory fetches the battle history of one player.
	TaskBattleHistory
)

type Task struct {
	Kind   TaskKind
	UserID int64
	World  string
}

// Queue is a FIFO multi-producer/multi-consumer work queue with join
// semantics: Join returns once every pushed task has been both popped and
// acknowledged via Done. Consumers may push further tasks before calling
// Done, which is how the frontier grows while draining.
type Queue struct {
	mu         sync.Mutex
	popCond    *sync.Cond
	joinCond   *sync.Cond
	items      []Task
	unfinished int
}

func NewQueue() *Queue {
	q := &Queue{}
	q.popCond = sync.NewCond(&q.mu)
	q.joinCond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a task. Never blocks; the queue is unbounded.
func (q *Queue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	q.unfinished++
	q.popCond.Signal()
}

// Pop blocks until a task is available or the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (Task, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.popCond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		q.popCond.Wait()
	}

	t := q.items[0]
	q.items = q.items[1:]
	return t, nil
}

// Done acknowledges one previously popped task.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		q.joinCond.Broadcast()
	}
}

// Join blocks until every pushed task has been popped and acknowledged, or
// the context is cancelled.
func (q *Queue) Join(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.joinCond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.joinCond.Wait()
	}
	return nil
}

// Len reports the number of tasks waiting to be popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
