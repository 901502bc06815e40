package httpapi

import (
	"testing"

	"pkt.systems/forgecode/schema"
)

func TestHubForgetWorkspaceClosesSubscribers(t *testing.T) {
	hub := NewHub(10)
	ch, unsub, _ := hub.Subscribe("ws")
	other, unsubOther, _ := hub.Subscribe("other")
	defer unsubOther()
	hub.OnConsoleEvent(schema.ConsoleEvent{WorkspaceID: "ws", Type: schema.ConsoleOutput})

	hub.ForgetWorkspace("ws")
	hub.ForgetWorkspace("missing")
	if event, ok := <-ch; !ok || event.Seq != 1 {
		t.Fatalf("expected the queued event before close, got %+v ok=%v", event, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected subscriber channel to be closed")
	}
	unsub()
	if got := hub.Replay("ws", 0, 10); got != nil {
		t.Fatalf("expected no history, got %+v", got)
	}

	_, unsubAgain, seq := hub.Subscribe("ws")
	defer unsubAgain()
	if seq != 0 {
		t.Fatalf("expected a recreated workspace to start over, got seq %d", seq)
	}
	hub.OnConsoleEvent(schema.ConsoleEvent{WorkspaceID: "other", Type: schema.ConsoleIdle})
	if event := <-other; event.Seq != 1 {
		t.Fatalf("expected other workspace untouched, got %+v", event)
	}
}
