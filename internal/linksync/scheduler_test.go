package linksync

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/paperless"
)

type fakeUserSource struct {
	mu       sync.Mutex
	users    []model.User
	calls    int
	failNext bool
}

func (f *fakeUserSource) ListWithTokens(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext {
		f.failNext = false
		return nil, errors.New("user store unavailable")
	}
	return f.users, nil
}

func (f *fakeUserSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testClientFactory(t *testing.T, server *httptest.Server) ClientFactory {
	t.Helper()
	return func(token string) (*paperless.Client, error) {
		return paperless.NewClient(server.URL, token, nil)
	}
}

func TestScanComposesSkipAcrossUsers(t *testing.T) {
	fake := newFakePaperless(1)
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	// Both users see the same corpus. The stale index reports doc 1 as
	// missing the field even after the first user wrote it, so only the
	// composed skip set keeps the second user from writing it again.
	fake.staleIDs[1] = true
	users := &fakeUserSource{users: []model.User{
		{ID: 1, Username: "alice", PaperlessToken: "token-a"},
		{ID: 2, Username: "bob", PaperlessToken: "token-b"},
	}}

	syncer := NewSyncer(testFieldName, testBaseURL, slog.Default())
	sched := NewScheduler(syncer, users, testClientFactory(t, server), time.Hour, slog.Default())

	touched, err := sched.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := touched[1]; !ok || len(touched) != 1 {
		t.Errorf("touched = %v, want exactly doc 1", touched)
	}
	if fake.patchCalls != 1 {
		t.Errorf("doc patched %d times across two users, want 1", fake.patchCalls)
	}
}

func TestSchedulerSurvivesFailedCycle(t *testing.T) {
	fake := newFakePaperless(1)
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	users := &fakeUserSource{
		users:    []model.User{{ID: 1, Username: "alice", PaperlessToken: "token-a"}},
		failNext: true, // first cycle fails
	}

	syncer := NewSyncer(testFieldName, testBaseURL, slog.Default())
	sched := NewScheduler(syncer, users, testClientFactory(t, server), 10*time.Millisecond, slog.Default())

	sched.Start(context.Background())
	defer sched.Stop()

	// The first cycle fails listing users; wait until a later cycle has
	// gotten far enough to write the link.
	deadline := time.After(2 * time.Second)
	for {
		fake.mu.Lock()
		patched := fake.patchCalls
		fake.mu.Unlock()
		if patched > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler did not recover after a failed cycle")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sched.Stop()

	if users.callCount() < 2 {
		t.Errorf("user source listed %d times, want at least 2", users.callCount())
	}
}

func TestSchedulerStopWaitsForCycle(t *testing.T) {
	fake := newFakePaperless()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	users := &fakeUserSource{}
	syncer := NewSyncer(testFieldName, testBaseURL, slog.Default())
	sched := NewScheduler(syncer, users, testClientFactory(t, server), time.Hour, slog.Default())

	sched.Start(context.Background())
	sched.Stop()

	select {
	case <-sched.done:
	default:
		t.Error("done channel still open after Stop returned")
	}
}
