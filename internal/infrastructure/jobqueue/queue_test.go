package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeExecutor struct {
	mu        sync.Mutex
	attempts  []int
	exhausted []error
	execute   func(attempt int) error
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, job *Job) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.attempts = append(f.attempts, job.Attempt)
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(job.Attempt)
	}
	return nil
}

func (f *fakeExecutor) OnExhausted(ctx context.Context, job *Job, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exhausted = append(f.exhausted, err)
}

func (f *fakeExecutor) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeExecutor) exhaustedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exhausted)
}

func newTask() imports.Task {
	return imports.Task{
		BatchUID:         uuid.New(),
		TenantID:         uuid.New(),
		UserID:           uuid.New(),
		TempFilePath:     "/tmp/cv.pdf",
		OriginalFilename: "cv.pdf",
	}
}

func startQueue(t *testing.T, cfg Config, exec Executor) *Queue {
	t.Helper()
	q, err := NewQueue(cfg, exec, zaptest.NewLogger(t), WithBackoff(func(int) time.Duration {
		return time.Millisecond
	}))
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Workers = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.JobTimeout = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestQueue_SubmitBeforeStart(t *testing.T) {
	q, err := NewQueue(DefaultConfig(), &fakeExecutor{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.ErrorIs(t, q.Submit(newTask()), ErrQueueNotRunning)
}

func TestQueue_ExecutesSubmittedTask(t *testing.T) {
	exec := &fakeExecutor{}
	q := startQueue(t, DefaultConfig(), exec)

	require.NoError(t, q.Submit(newTask()))

	require.Eventually(t, func() bool {
		return exec.attemptCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, exec.attempts)
	assert.Zero(t, exec.exhaustedCount())
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	exec := &fakeExecutor{
		execute: func(attempt int) error {
			if attempt < 3 {
				return errors.New("parsing service unreachable")
			}
			return nil
		},
	}
	q := startQueue(t, DefaultConfig(), exec)

	require.NoError(t, q.Submit(newTask()))

	require.Eventually(t, func() bool {
		return exec.attemptCount() == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, exec.attempts)
	assert.Zero(t, exec.exhaustedCount())
}

func TestQueue_TerminalErrorSkipsRetries(t *testing.T) {
	exec := &fakeExecutor{
		execute: func(int) error {
			return imports.Terminal("file is gone", nil)
		},
	}
	q := startQueue(t, DefaultConfig(), exec)

	require.NoError(t, q.Submit(newTask()))

	require.Eventually(t, func() bool {
		return exec.exhaustedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, exec.attemptCount())
	assert.True(t, imports.IsTerminal(exec.exhausted[0]))
}

func TestQueue_ExhaustsAfterMaxAttempts(t *testing.T) {
	exec := &fakeExecutor{
		execute: func(int) error {
			return errors.New("still failing")
		},
	}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	q := startQueue(t, cfg, exec)

	require.NoError(t, q.Submit(newTask()))

	require.Eventually(t, func() bool {
		return exec.exhaustedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, exec.attempts)
	assert.EqualError(t, exec.exhausted[0], "still failing")
}

func TestQueue_FullQueueRejectsSubmission(t *testing.T) {
	exec := &fakeExecutor{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.Capacity = 1
	q := startQueue(t, cfg, exec)
	defer close(exec.release)

	// First task occupies the only worker.
	require.NoError(t, q.Submit(newTask()))
	<-exec.started

	// Second fills the buffer, third bounces.
	require.NoError(t, q.Submit(newTask()))
	assert.ErrorIs(t, q.Submit(newTask()), ErrQueueFull)
}

func TestQueue_StopPreventsFurtherSubmissions(t *testing.T) {
	exec := &fakeExecutor{}
	q, err := NewQueue(DefaultConfig(), exec, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	assert.ErrorIs(t, q.Submit(newTask()), ErrQueueNotRunning)
}
