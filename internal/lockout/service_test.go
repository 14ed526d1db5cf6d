package lockout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"faceguard/internal/audit"
	"faceguard/pkg/requestcontext"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordedEvents) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) byType(t audit.EventType) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	store    *InMemoryStore
	recorder *recordedEvents
	svc      *Service
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.recorder = &recordedEvents{}
	svc, err := New(s.store, 5, time.Minute, time.Minute, WithRecorder(s.recorder))
	s.Require().NoError(err)
	s.svc = svc
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) TestUnknownIdentityIsOpen() {
	status, err := s.svc.Check(s.ctxAt(s.now), "never-seen")
	s.NoError(err)
	s.False(status.Locked)
	s.Zero(status.FailureCount)
}

func (s *ServiceSuite) TestFiveFailuresLock() {
	ctx := s.ctxAt(s.now)

	for i := 0; i < 4; i++ {
		state, err := s.svc.RecordFailure(ctx, "rob")
		s.Require().NoError(err)
		s.Nil(state.LockedUntil, "failure %d must not lock", i+1)
	}

	state, err := s.svc.RecordFailure(ctx, "rob")
	s.Require().NoError(err)
	s.Require().NotNil(state.LockedUntil)
	s.Equal(s.now.Add(time.Minute), *state.LockedUntil)
	s.Len(s.recorder.byType(audit.EventLockoutTriggered), 1)

	s.Run("sixth attempt is blocked without touching the counter", func() {
		status, err := s.svc.Check(s.ctxAt(s.now.Add(30*time.Second)), "rob")
		s.Require().NoError(err)
		s.True(status.Locked)
		s.Equal(30*time.Second, status.RetryAfter)
		s.Equal(5, status.FailureCount)
		s.Len(s.recorder.byType(audit.EventLockoutBlock), 1)

		stored, err := s.store.Get(context.Background(), "rob")
		s.Require().NoError(err)
		s.Equal(5, stored.FailureCount)
	})

	s.Run("expired lock reopens with a clean counter", func() {
		after := s.now.Add(61 * time.Second)
		status, err := s.svc.Check(s.ctxAt(after), "rob")
		s.Require().NoError(err)
		s.False(status.Locked)
		s.Zero(status.FailureCount)

		// One more failure is allowed before re-locking.
		state, err := s.svc.RecordFailure(s.ctxAt(after), "rob")
		s.Require().NoError(err)
		s.Equal(1, state.FailureCount)
		s.Nil(state.LockedUntil)
	})
}

func (s *ServiceSuite) TestSuccessResetsCounter() {
	ctx := s.ctxAt(s.now)

	for i := 0; i < 3; i++ {
		_, err := s.svc.RecordFailure(ctx, "alice")
		s.Require().NoError(err)
	}

	s.NoError(s.svc.RecordSuccess(ctx, "alice"))

	status, err := s.svc.Check(ctx, "alice")
	s.Require().NoError(err)
	s.Zero(status.FailureCount)
}

func (s *ServiceSuite) TestWindowExpiryRestartsCounter() {
	_, err := s.svc.RecordFailure(s.ctxAt(s.now), "carol")
	s.Require().NoError(err)
	_, err = s.svc.RecordFailure(s.ctxAt(s.now.Add(10*time.Second)), "carol")
	s.Require().NoError(err)

	// Past the window: the count restarts instead of accumulating.
	state, err := s.svc.RecordFailure(s.ctxAt(s.now.Add(2*time.Minute)), "carol")
	s.Require().NoError(err)
	s.Equal(1, state.FailureCount)
}

func (s *ServiceSuite) TestAdminClearAudits() {
	ctx := s.ctxAt(s.now)
	for i := 0; i < 5; i++ {
		_, err := s.svc.RecordFailure(ctx, "mallory")
		s.Require().NoError(err)
	}

	s.NoError(s.svc.Clear(ctx, "mallory"))
	s.Len(s.recorder.byType(audit.EventLockoutCleared), 1)

	status, err := s.svc.Check(ctx, "mallory")
	s.Require().NoError(err)
	s.False(status.Locked)
}

func (s *ServiceSuite) TestConcurrentFailuresSerialize() {
	ctx := s.ctxAt(s.now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.RecordFailure(ctx, "raced")
			s.NoError(err)
		}()
	}
	wg.Wait()

	state, err := s.store.Get(context.Background(), "raced")
	s.Require().NoError(err)
	s.Equal(20, state.FailureCount)
	s.NotNil(state.LockedUntil)
}
