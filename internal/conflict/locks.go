package conflict

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// taskLocks hands out one advisory lock per task id. Plans touching
// overlapping tasks run one after another; disjoint plans run in parallel.
type taskLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (l *taskLocks) get(id string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[id] = sem
	}
	return sem
}

// acquire locks every id in sorted order, which rules out lock-order
// deadlocks between plans. On error nothing stays held. The returned release
// must be called exactly once.
func (l *taskLocks) acquire(ctx context.Context, ids []string) (func(), error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*semaphore.Weighted, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, id := range ids {
		sem := l.get(id)
		if err := sem.Acquire(ctx, 1); err != nil {
			release()
			return nil, err
		}
		held = append(held, sem)
	}
	return release, nil
}
