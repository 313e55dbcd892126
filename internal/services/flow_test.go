package services

import (
	"strings"
	"testing"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

func TestAdvanceGreetingFromAnyState(t *testing.T) {
	states := []models.ConversationState{
		models.StateInitial,
		models.StateAwaitingMenu,
		models.StateAwaitingAmount,
	}

	for _, state := range states {
		for _, greeting := range []string{"hola", "Hola", "  HOLA  ", "menú", "MENÚ"} {
			tr := Advance(state, greeting)
			if tr.NextState != models.StateAwaitingMenu {
				t.Errorf("Advance(%s, %q): next state = %s, want %s",
					state, greeting, tr.NextState, models.StateAwaitingMenu)
			}
			if tr.Reply != menuText {
				t.Errorf("Advance(%s, %q): reply = %q, want the menu", state, greeting, tr.Reply)
			}
			if tr.RefreshInteraction {
				t.Errorf("Advance(%s, %q): greeting should not refresh interaction", state, greeting)
			}
		}
	}
}

func TestAdvanceMenuChoices(t *testing.T) {
	cases := []struct {
		input     string
		nextState models.ConversationState
		reply     string
		refresh   bool
	}{
		{"1", models.StateInitial, balanceText, false},
		{"2", models.StateAwaitingAmount, askAmountText, false},
		{"3", models.StateAwaitingAgent, agentHandoffText, true},
		{"4", models.StateAwaitingMenu, invalidOptionText, false},
		{"cualquier cosa", models.StateAwaitingMenu, invalidOptionText, false},
		{"", models.StateAwaitingMenu, invalidOptionText, false},
	}

	for _, tc := range cases {
		tr := Advance(models.StateAwaitingMenu, tc.input)
		if tr.NextState != tc.nextState {
			t.Errorf("menu choice %q: next state = %s, want %s", tc.input, tr.NextState, tc.nextState)
		}
		if tr.Reply != tc.reply {
			t.Errorf("menu choice %q: reply = %q, want %q", tc.input, tr.Reply, tc.reply)
		}
		if tr.RefreshInteraction != tc.refresh {
			t.Errorf("menu choice %q: refresh = %v, want %v", tc.input, tr.RefreshInteraction, tc.refresh)
		}
	}
}

func TestAdvanceRechargeAmount(t *testing.T) {
	tr := Advance(models.StateAwaitingAmount, "50")
	if tr.NextState != models.StateInitial {
		t.Errorf("valid amount: next state = %s, want %s", tr.NextState, models.StateInitial)
	}
	if !strings.Contains(tr.Reply, "50") {
		t.Errorf("valid amount: reply %q should confirm the amount", tr.Reply)
	}

	for _, input := range []string{"abc", "-5", "0", "12.5", "50 pesos"} {
		tr := Advance(models.StateAwaitingAmount, input)
		if tr.NextState != models.StateAwaitingAmount {
			t.Errorf("invalid amount %q: next state = %s, want to stay in %s",
				input, tr.NextState, models.StateAwaitingAmount)
		}
		if tr.Reply != invalidAmountText {
			t.Errorf("invalid amount %q: reply = %q, want %q", input, tr.Reply, invalidAmountText)
		}
	}
}

func TestAdvanceCatchAll(t *testing.T) {
	for _, state := range []models.ConversationState{models.StateInitial, "unknown_state"} {
		tr := Advance(state, "qué tal")
		if tr.NextState != models.StateInitial {
			t.Errorf("catch-all from %s: next state = %s, want %s", state, tr.NextState, models.StateInitial)
		}
		if tr.Reply != notUnderstoodText {
			t.Errorf("catch-all from %s: reply = %q, want %q", state, tr.Reply, notUnderstoodText)
		}
	}
}
