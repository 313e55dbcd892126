package services

import (
	"testing"
	"time"
)

func TestSentTrackerConsumeOnce(t *testing.T) {
	tracker := NewSentTracker(0)
	defer tracker.Close()

	tracker.Register("MSG1")
	if !tracker.Consume("MSG1") {
		t.Fatal("first Consume of a registered id should report true")
	}
	if tracker.Consume("MSG1") {
		t.Fatal("second Consume of the same id should report false")
	}
}

func TestSentTrackerUnknownID(t *testing.T) {
	tracker := NewSentTracker(0)
	defer tracker.Close()

	if tracker.Consume("never-registered") {
		t.Fatal("Consume of an unknown id should report false")
	}
	tracker.Register("")
	if tracker.Consume("") {
		t.Fatal("empty ids must not be tracked")
	}
}

func TestSentTrackerExpiry(t *testing.T) {
	tracker := NewSentTracker(20 * time.Millisecond)
	defer tracker.Close()

	tracker.Register("MSG1")
	time.Sleep(60 * time.Millisecond)
	if tracker.Consume("MSG1") {
		t.Fatal("entry should have expired")
	}
}

func TestSentTrackerClose(t *testing.T) {
	tracker := NewSentTracker(0)
	tracker.Register("MSG1")
	tracker.Close()

	if tracker.Consume("MSG1") {
		t.Fatal("Close should drop pending entries")
	}
	tracker.Register("MSG2")
	if tracker.Consume("MSG2") {
		t.Fatal("a closed tracker must reject new registrations")
	}
}
