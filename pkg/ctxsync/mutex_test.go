package ctxsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/albedo/pkg/ctxsync"
)

type MutexTestSuite struct {
	suite.Suite
	mu *ctxsync.Mutex
}

func (s *MutexTestSuite) SetupTest() {
	s.mu = ctxsync.NewMutex()
}

func (s *MutexTestSuite) TestExclusive() {
	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.mu.Lock()
			defer s.mu.Unlock()
			counter++
		}()
	}
	wg.Wait()
	s.Equal(100, counter)
}

// acquire locks the mutex, failing the test if it is not free.
func (s *MutexTestSuite) acquire() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.mu.LockWithContext(ctx))
}

func (s *MutexTestSuite) TestWaitsForUnlock() {
	s.mu.Lock()
	acquired := make(chan error, 1)
	go func() {
		acquired <- s.mu.LockWithContext(context.Background())
	}()

	select {
	case <-acquired:
		s.FailNow("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	s.mu.Unlock()
	select {
	case err := <-acquired:
		s.NoError(err)
	case <-time.After(time.Second):
		s.FailNow("lock not acquired after unlock")
	}
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestCancel() {
	s.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.mu.LockWithContext(ctx), context.DeadlineExceeded)

	// the abandoned waiter does not hold the lock
	s.mu.Unlock()
	s.acquire()
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestCanceledBeforeLock() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(s.mu.LockWithContext(ctx), context.Canceled)
	s.acquire()
	s.mu.Unlock()
}

func (s *MutexTestSuite) TestUnlockUnlocked() {
	s.PanicsWithValue("ctxsync: unlock of unlocked mutex", s.mu.Unlock)
}

func TestMutexTestSuite(t *testing.T) {
	suite.Run(t, new(MutexTestSuite))
}

func BenchmarkLockUnlock(b *testing.B) {
	mu := ctxsync.NewMutex()
	for b.Loop() {
		mu.Lock()
		mu.Unlock()
	}
}
