package storage

import (
	"testing"
	"time"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

func TestFindOrCreateUserIdempotent(t *testing.T) {
	store := NewMemoryStore()

	first, err := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if first.State != models.StateInitial {
		t.Errorf("new user state = %s, want %s", first.State, models.StateInitial)
	}
	if first.PhoneNumber != "59170000001" {
		t.Errorf("phone = %q, want the bare number", first.PhoneNumber)
	}

	second, err := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("same contact+session resolved to a different user: %d vs %d", second.ID, first.ID)
	}
}

func TestSameContactDifferentSessions(t *testing.T) {
	store := NewMemoryStore()

	a, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	b, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session2")
	if a.ID == b.ID {
		t.Fatal("the same contact on two sessions must be two distinct users")
	}
}

func TestUpdateUserState(t *testing.T) {
	store := NewMemoryStore()

	user, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	if err := store.UpdateUserState(user.ID, models.StateAwaitingMenu); err != nil {
		t.Fatalf("UpdateUserState: %v", err)
	}

	got, ok := store.GetUser(user.ID)
	if !ok {
		t.Fatal("user disappeared")
	}
	if got.State != models.StateAwaitingMenu {
		t.Errorf("state = %s, want %s", got.State, models.StateAwaitingMenu)
	}
}

func TestCheckAgentTimeouts(t *testing.T) {
	store := NewMemoryStore()
	store.AgentTimeout = time.Millisecond

	staleUser, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	store.UpdateUserState(staleUser.ID, models.StateAwaitingAgent)
	store.UpdateUserInteractionTime(staleUser.ID)

	// Not in awaiting_agent: never swept regardless of age.
	idleUser, _ := store.FindOrCreateUser("59170000002@s.whatsapp.net", "session1")
	store.UpdateUserInteractionTime(idleUser.ID)

	// In awaiting_agent but without a stamp: not swept.
	unstampedUser, _ := store.FindOrCreateUser("59170000003@s.whatsapp.net", "session1")
	store.UpdateUserState(unstampedUser.ID, models.StateAwaitingAgent)

	time.Sleep(5 * time.Millisecond)

	timedOut, err := store.CheckAgentTimeouts()
	if err != nil {
		t.Fatalf("CheckAgentTimeouts: %v", err)
	}
	if len(timedOut) != 1 || timedOut[0].ID != staleUser.ID {
		t.Fatalf("expected only the stale user, got %+v", timedOut)
	}
	// Returned snapshot shows the pre-reset state.
	if timedOut[0].State != models.StateAwaitingAgent {
		t.Errorf("snapshot state = %s, want %s", timedOut[0].State, models.StateAwaitingAgent)
	}

	got, _ := store.GetUser(staleUser.ID)
	if got.State != models.StateInitial {
		t.Errorf("stored state = %s, want %s after sweep", got.State, models.StateInitial)
	}

	// Second sweep finds nothing.
	timedOut, _ = store.CheckAgentTimeouts()
	if len(timedOut) != 0 {
		t.Fatalf("second sweep should be empty, got %+v", timedOut)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	store := NewMemoryStore()

	store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	store.FindOrCreateGroup("1203630000000001@g.us", "session1")
	keep, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session2")

	if err := store.DeleteSession("session1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	recreated, _ := store.FindOrCreateUser("59170000001@s.whatsapp.net", "session1")
	if recreated.State != models.StateInitial {
		t.Error("user should have been recreated fresh after the cascade")
	}
	if _, ok := store.GetUser(keep.ID); !ok {
		t.Error("users of other sessions must survive the cascade")
	}
}

func TestSaveSessionDevice(t *testing.T) {
	store := NewMemoryStore()

	if err := store.SaveSessionDevice("session1", "59170000000.0:1@s.whatsapp.net"); err != nil {
		t.Fatalf("SaveSessionDevice: %v", err)
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].DeviceJID != "59170000000.0:1@s.whatsapp.net" {
		t.Fatalf("sessions = %+v", sessions)
	}
}
