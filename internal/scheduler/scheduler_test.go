package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"strata/internal/scheduler"
)

func TestRunParallelSequentialWhenGateClosed(t *testing.T) {
	s := scheduler.New(4, 4).WithParallel(false)

	var calls int32
	items := []int{1, 2, 3, 4, 5}
	err := scheduler.RunParallel(context.Background(), s, items, func(_ context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunParallel: %v", err)
	}
	if calls != int32(len(items)) {
		t.Errorf("got %d calls, want %d", calls, len(items))
	}
}

func TestRunParallelFansOutWhenGateOpen(t *testing.T) {
	s := scheduler.New(4, 4).WithParallel(true)

	var calls int32
	items := make([]int, 20)
	err := scheduler.RunParallel(context.Background(), s, items, func(_ context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunParallel: %v", err)
	}
	if calls != int32(len(items)) {
		t.Errorf("got %d calls, want %d", calls, len(items))
	}
}

func TestRunParallelPropagatesFirstError(t *testing.T) {
	s := scheduler.New(4, 4).WithParallel(true)
	boom := context.Canceled

	err := scheduler.RunParallel(context.Background(), s, []int{1, 2, 3}, func(_ context.Context, i int) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected an error to propagate")
	}
}

func TestScheduleAndStopDrainsQueue(t *testing.T) {
	s := scheduler.New(10, 2)
	s.Start()

	executed := make(chan string, 5)
	for i := 0; i < 3; i++ {
		s.Schedule(scheduler.Task{
			Name: "task",
			Execute: func() error {
				executed <- "done"
				return nil
			},
		})
	}

	s.Stop()

	timeout := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-executed:
		case <-timeout:
			t.Fatalf("expected all scheduled tasks to run before Stop returns")
		}
	}
}
