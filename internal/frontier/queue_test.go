package frontier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(Task{Kind: TaskRecommendPage})
	q.Push(Task{Kind: TaskBattleHistory, UserID: 1, World: "world_global"})
	q.Push(Task{Kind: TaskBattleHistory, UserID: 2, World: "world_kor"})

	ctx := context.Background()
	first, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if first.Kind != TaskRecommendPage {
		t.Fatalf("expected recommend page first, got %+v", first)
	}
	second, _ := q.Pop(ctx)
	if second.UserID != 1 {
		t.Fatalf("expected user 1, got %+v", second)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Task, 1)

	go func() {
		task, err := q.Pop(context.Background())
		if err != nil {
			t.Errorf("pop err: %v", err)
			return
		}
		got <- task
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(Task{Kind: TaskBattleHistory, UserID: 7, World: "world_jpn"})

	select {
	case task := <-got:
		if task.UserID != 7 {
			t.Fatalf("unexpected task %+v", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not observe cancellation")
	}
}

func TestQueueJoinWaitsForDone(t *testing.T) {
	q := NewQueue()
	q.Push(Task{Kind: TaskRecommendPage})

	joined := make(chan struct{})
	go func() {
		if err := q.Join(context.Background()); err != nil {
			t.Errorf("join err: %v", err)
		}
		close(joined)
	}()

	if _, err := q.Pop(context.Background()); err != nil {
		t.Fatalf("pop: %v", err)
	}

	select {
	case <-joined:
		t.Fatal("join completed before Done")
	case <-time.After(50 * time.Millisecond):
	}

	q.Done()

	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("join did not complete after Done")
	}
}

// A task may push follow-up tasks before acknowledging itself; join must not
// complete until the whole cascade drains.
func TestQueueJoinWithCascadingTasks(t *testing.T) {
	q := NewQueue()
	const workers = 4
	const fanout = 3

	var processed atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.Pop(ctx)
				if err != nil {
					return
				}
				if task.Kind == TaskRecommendPage {
					for f := 0; f < fanout; f++ {
						q.Push(Task{Kind: TaskBattleHistory, UserID: int64(f), World: "w"})
					}
				}
				processed.Add(1)
				q.Done()
			}
		}()
	}

	const seeds = 5
	for i := 0; i < seeds; i++ {
		q.Push(Task{Kind: TaskRecommendPage})
	}

	joinCtx, joinCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer joinCancel()
	if err := q.Join(joinCtx); err != nil {
		t.Fatalf("join: %v", err)
	}

	cancel()
	wg.Wait()

	want := int64(seeds + seeds*fanout)
	if processed.Load() != want {
		t.Fatalf("processed %d tasks, want %d", processed.Load(), want)
	}
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	q := NewQueue()
	const producers = 4
	const perProducer = 250

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := q.Pop(ctx); err != nil {
					return
				}
				consumed.Add(1)
				q.Done()
			}
		}()
	}

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		producerWg.Add(1)
		go func() {
			defer producerWg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(Task{Kind: TaskBattleHistory, UserID: int64(p*perProducer + i), World: "w"})
			}
		}()
	}
	producerWg.Wait()

	joinCtx, joinCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer joinCancel()
	if err := q.Join(joinCtx); err != nil {
		t.Fatalf("join: %v", err)
	}
	cancel()
	wg.Wait()

	if consumed.Load() != producers*perProducer {
		t.Fatalf("consumed %d, want %d", consumed.Load(), producers*perProducer)
	}
}
