package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingService blocks in Start until stopped, recording both events
// into a shared order slice.
type blockingService struct {
	name  string
	order *eventLog
	done  chan struct{}
	once  sync.Once
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func newBlockingService(name string, order *eventLog) *blockingService {
	return &blockingService{name: name, order: order, done: make(chan struct{})}
}

func (s *blockingService) Start() error {
	s.order.add("start:" + s.name)
	<-s.done
	return nil
}

func (s *blockingService) Stop() {
	s.order.add("stop:" + s.name)
	s.once.Do(func() { close(s.done) })
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	order := &eventLog{}
	lc := NewLifecycle(zap.NewNop())
	lc.Add("database", newBlockingService("database", order))
	lc.Add("rooms", newBlockingService("rooms", order))
	lc.Add("http", newBlockingService("http", order))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- lc.Run(ctx) }()

	// Let the start goroutines record themselves before cancelling.
	require.Eventually(t, func() bool {
		return len(order.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-runDone)

	events := order.snapshot()
	require.Len(t, events, 6)
	assert.Equal(t, []string{"stop:http", "stop:rooms", "stop:database"}, events[3:])
}

func TestLifecycle_ServiceErrorTriggersShutdown(t *testing.T) {
	order := &eventLog{}
	lc := NewLifecycle(zap.NewNop())
	lc.Add("steady", newBlockingService("steady", order))
	lc.Add("flaky", &FuncService{
		StartFn: func() error { return errors.New("bind: address already in use") },
		StopFn:  func() { order.add("stop:flaky") },
	})

	runDone := make(chan error, 1)
	go func() { runDone <- lc.Run(context.Background()) }()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after a service error")
	}

	events := order.snapshot()
	assert.Contains(t, events, "stop:flaky")
	assert.Contains(t, events, "stop:steady")
}

func TestFuncService(t *testing.T) {
	started, stopped := false, false
	svc := &FuncService{
		StartFn: func() error { started = true; return nil },
		StopFn:  func() { stopped = true },
	}
	require.NoError(t, svc.Start())
	svc.Stop()
	assert.True(t, started)
	assert.True(t, stopped)
}
