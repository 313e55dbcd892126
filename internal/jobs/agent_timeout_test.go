package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
	"github.com/nachoDevOS/whatsapp-server/internal/services"
	"github.com/nachoDevOS/whatsapp-server/internal/storage"
)

type recordingSender struct {
	mu   sync.Mutex
	to   []string
	seq  int
	fail error
}

func (r *recordingSender) SendText(_ context.Context, _, to, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return "", r.fail
	}
	r.seq++
	r.to = append(r.to, to)
	return fmt.Sprintf("TIMEOUT-%d", r.seq), nil
}

func (r *recordingSender) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.to))
	copy(out, r.to)
	return out
}

func newTestJob(store storage.Store, sender services.Sender, tracker *services.SentTracker) *AgentTimeoutJob {
	job := NewAgentTimeoutJob(store, sender, tracker)
	job.pauseMin = 0
	job.pauseJitter = 0
	return job
}

// stale puts a user into agent handoff with an interaction stamp older than
// the store's timeout.
func stale(t *testing.T, store *storage.MemoryStore, contactID string) *models.User {
	t.Helper()
	user, err := store.FindOrCreateUser(contactID, "session1")
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if err := store.UpdateUserState(user.ID, models.StateAwaitingAgent); err != nil {
		t.Fatalf("UpdateUserState: %v", err)
	}
	if err := store.UpdateUserInteractionTime(user.ID); err != nil {
		t.Fatalf("UpdateUserInteractionTime: %v", err)
	}
	return user
}

func TestRunSweepResetsStaleUsers(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AgentTimeout = time.Millisecond
	sender := &recordingSender{}
	tracker := services.NewSentTracker(0)
	defer tracker.Close()

	user := stale(t, store, "59170000001@s.whatsapp.net")
	time.Sleep(5 * time.Millisecond)

	job := newTestJob(store, sender, tracker)
	job.RunSweep(context.Background())

	got, _ := store.GetUser(user.ID)
	if got.State != models.StateInitial {
		t.Errorf("state = %s, want %s after the sweep", got.State, models.StateInitial)
	}

	if recipients := sender.recipients(); len(recipients) != 1 || recipients[0] != user.ContactID {
		t.Fatalf("expected one notice to %s, got %v", user.ContactID, recipients)
	}

	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Source != models.SourceBot {
		t.Fatalf("expected the notice archived as a bot message, got %+v", msgs)
	}
	if services.StripInvisible(msgs[0].MessageText) != services.AgentTimeoutText {
		t.Errorf("archived notice = %q", services.StripInvisible(msgs[0].MessageText))
	}

	// The notice id is tracked so its echo will not be archived again.
	if !tracker.Consume("TIMEOUT-1") {
		t.Error("notice id should be registered for echo dedup")
	}
}

func TestRunSweepSkipsFreshUsers(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &recordingSender{}
	tracker := services.NewSentTracker(0)
	defer tracker.Close()

	user := stale(t, store, "59170000001@s.whatsapp.net")

	job := newTestJob(store, sender, tracker)
	job.RunSweep(context.Background())

	got, _ := store.GetUser(user.ID)
	if got.State != models.StateAwaitingAgent {
		t.Errorf("a recently active user must stay in agent handoff, got %s", got.State)
	}
	if len(sender.recipients()) != 0 {
		t.Error("no notice should be sent for fresh users")
	}
}

func TestRunSweepSendFailureResetsAnyway(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AgentTimeout = time.Millisecond
	sender := &recordingSender{fail: fmt.Errorf("socket closed")}
	tracker := services.NewSentTracker(0)
	defer tracker.Close()

	user := stale(t, store, "59170000001@s.whatsapp.net")
	time.Sleep(5 * time.Millisecond)

	job := newTestJob(store, sender, tracker)
	job.RunSweep(context.Background())

	// The reset is the point of the sweep; losing the courtesy notice is
	// acceptable.
	got, _ := store.GetUser(user.ID)
	if got.State != models.StateInitial {
		t.Errorf("state = %s, want %s even when the notice failed", got.State, models.StateInitial)
	}
	if len(store.Messages()) != 0 {
		t.Error("a failed notice must not be archived")
	}
}

func TestRunSweepHandlesMultipleUsers(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AgentTimeout = time.Millisecond
	sender := &recordingSender{}
	tracker := services.NewSentTracker(0)
	defer tracker.Close()

	for i := 1; i <= 3; i++ {
		stale(t, store, fmt.Sprintf("5917000000%d@s.whatsapp.net", i))
	}
	time.Sleep(5 * time.Millisecond)

	job := newTestJob(store, sender, tracker)
	job.RunSweep(context.Background())

	if got := len(sender.recipients()); got != 3 {
		t.Fatalf("expected three notices, got %d", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := services.NewSentTracker(0)
	defer tracker.Close()

	job := newTestJob(store, &recordingSender{}, tracker)
	job.Start()
	job.Start() // second Start is a no-op
	job.Stop()
	job.Stop() // second Stop is a no-op

	job.Start()
	job.Stop()
}
