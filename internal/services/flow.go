package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

// Reply texts. Spintax groups are expanded by the anti-ban pipeline at send
// time, so the stored bot message already carries the chosen variant.
const (
	menuText = "Hola! 👋 Bienvenido de nuevo. Por favor, elige una opción:\n\n" +
		"1. Ver saldo\n2. Recargar cuenta\n3. Hablar con un asesor"
	balanceText       = "Has elegido \"Ver saldo\". Tu saldo es de $100."
	askAmountText     = "Has elegido \"Recargar cuenta\". ¿Qué monto deseas recargar?"
	agentHandoffText  = "Has elegido \"Hablar con un asesor\". En breve uno de nuestros agentes te contactará."
	invalidOptionText = "Opción no válida. Por favor, responde con 1, 2 o 3. Envía \"menú\" para ver las opciones de nuevo."
	invalidAmountText = "Monto no válido. Por favor, envía solo el número del monto que deseas recargar (ej. 50)."
	notUnderstoodText = "No he entendido tu mensaje. Envía \"hola\" para empezar."

	// AgentTimeoutText is what the timeout sweep sends when no agent showed up.
	AgentTimeoutText = "Parece que nuestros asesores están ocupados. Has sido devuelto al menú principal. " +
		"Envía \"hola\" para comenzar de nuevo."
)

// Transition is the outcome of feeding one user message to the menu flow.
type Transition struct {
	NextState models.ConversationState
	Reply     string
	// RefreshInteraction marks transitions that must stamp
	// last_interaction_at (entering agent handoff).
	RefreshInteraction bool
}

// stateHandlers maps each conversation state to its input handler. The
// greeting check runs before the table so "hola" works from every state;
// awaiting_agent never reaches this table because the router short-circuits
// it first.
var stateHandlers = map[models.ConversationState]func(string) Transition{
	models.StateAwaitingMenu:   handleMenuChoice,
	models.StateAwaitingAmount: handleRechargeAmount,
}

// Advance is the conversation state machine: pure in, pure out. The caller
// persists the state change and sends the reply.
func Advance(current models.ConversationState, text string) Transition {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if normalized == "hola" || normalized == "menú" {
		return Transition{NextState: models.StateAwaitingMenu, Reply: menuText}
	}

	if handler, exists := stateHandlers[current]; exists {
		return handler(normalized)
	}

	// Unknown or initial state with no greeting: reset and point at the menu.
	return Transition{NextState: models.StateInitial, Reply: notUnderstoodText}
}

func handleMenuChoice(input string) Transition {
	switch input {
	case "1":
		return Transition{NextState: models.StateInitial, Reply: balanceText}
	case "2":
		return Transition{NextState: models.StateAwaitingAmount, Reply: askAmountText}
	case "3":
		return Transition{
			NextState:          models.StateAwaitingAgent,
			Reply:              agentHandoffText,
			RefreshInteraction: true,
		}
	default:
		return Transition{NextState: models.StateAwaitingMenu, Reply: invalidOptionText}
	}
}

func handleRechargeAmount(input string) Transition {
	amount, err := strconv.Atoi(input)
	if err != nil || amount <= 0 {
		return Transition{NextState: models.StateAwaitingAmount, Reply: invalidAmountText}
	}
	return Transition{
		NextState: models.StateInitial,
		Reply:     fmt.Sprintf("Gracias. Se ha procesado una recarga de %d.", amount),
	}
}
