package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
	"github.com/nachoDevOS/whatsapp-server/internal/storage"
	"github.com/nachoDevOS/whatsapp-server/internal/whatsapp"
)

// Sender is the outbound half of the platform client. The returned id is the
// platform-assigned message id of the send.
type Sender interface {
	SendText(ctx context.Context, sessionID, to, text string) (string, error)
}

// statusBroadcastJID is the platform's story/status channel; events for it
// are never conversations.
const statusBroadcastJID = "status@broadcast"

// placeholders stand in for non-text content so the conversation archive
// stays readable. A leading '[' also tells the chatbot to stay quiet.
var placeholders = map[string]string{
	"imageMessage":    "[Imagen]",
	"videoMessage":    "[Video]",
	"audioMessage":    "[Audio]",
	"documentMessage": "[Documento]",
	"stickerMessage":  "[Sticker]",
	"contactMessage":  "[Contacto]",
	"locationMessage": "[Ubicación]",
}

// MessageRouter classifies every inbound platform event and decides whether
// it feeds the chatbot, the agent transcript or the group archive.
type MessageRouter struct {
	store   storage.Store
	sender  Sender
	tracker *SentTracker
	locks   lockArena
}

// NewMessageRouter wires the router to its collaborators.
func NewMessageRouter(store storage.Store, sender Sender, tracker *SentTracker) *MessageRouter {
	return &MessageRouter{
		store:   store,
		sender:  sender,
		tracker: tracker,
		locks:   lockArena{locks: make(map[string]*userLock)},
	}
}

// Run consumes the inbound stream until the context is cancelled. One
// failing event is logged and dropped; the loop never stops for it.
func (r *MessageRouter) Run(ctx context.Context, events <-chan whatsapp.IncomingMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := r.HandleMessage(ctx, msg); err != nil {
				log.Printf("Error en onMessageReceived (%s): %v", msg.ID, err)
			}
		}
	}
}

// HandleMessage routes a single inbound event.
func (r *MessageRouter) HandleMessage(ctx context.Context, msg whatsapp.IncomingMessage) error {
	// Status/broadcast stories are not conversations.
	if msg.ChatJID == statusBroadcastJID {
		return nil
	}

	// Protocol chatter has no content worth archiving.
	if msg.Type == "protocolMessage" || msg.Type == "senderKeyDistributionMessage" {
		return nil
	}

	text := msg.Text
	if text == "" {
		if placeholder, known := placeholders[msg.Type]; known {
			text = placeholder
		} else {
			text = fmt.Sprintf("[Mensaje tipo: %s]", msg.Type)
		}
	}

	if strings.HasSuffix(msg.ChatJID, "@g.us") {
		return r.handleGroupMessage(msg, text)
	}
	return r.handleDirectMessage(ctx, msg, text)
}

// handleGroupMessage archives group traffic. Groups never reach the chatbot.
func (r *MessageRouter) handleGroupMessage(msg whatsapp.IncomingMessage, text string) error {
	group, err := r.store.FindOrCreateGroup(msg.ChatJID, msg.SessionID)
	if err != nil {
		return fmt.Errorf("find or create group: %w", err)
	}
	if msg.ID == "" {
		return nil
	}

	source := models.SourceUser
	sender := msg.Participant
	if sender == "" {
		sender = msg.SenderJID
	}
	if msg.FromMe {
		sender = "me"
		if r.tracker.Consume(msg.ID) {
			source = models.SourceBot
		} else {
			source = models.SourceManual
		}
	}

	if err := r.store.SaveGroupMessage(group.ID, sender, text, source); err != nil {
		return fmt.Errorf("save group message: %w", err)
	}
	log.Printf("Mensaje de grupo guardado | grupo=%s de=%s fuente=%s texto=%q",
		group.GroupJID, sender, source, text)
	return nil
}

// handleDirectMessage runs the individual-contact decision tree.
func (r *MessageRouter) handleDirectMessage(ctx context.Context, msg whatsapp.IncomingMessage, text string) error {
	// Some delivery paths report a linked/alias address as the chat; the
	// participant field then carries the real contact identity.
	contactID := msg.ChatJID
	if !msg.FromMe && msg.Participant != "" {
		contactID = msg.Participant
	}

	// Serialize the read-modify-write of the user's state per contact. The
	// lock is released before any blocking network send.
	unlock := r.locks.lock(msg.SessionID + "|" + contactID)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	user, err := r.store.FindOrCreateUser(contactID, msg.SessionID)
	if err != nil {
		return fmt.Errorf("find or create user: %w", err)
	}

	// A human agent owns this conversation; the bot stays out entirely.
	if user.State == models.StateAwaitingAgent {
		if err := r.store.UpdateUserInteractionTime(user.ID); err != nil {
			return fmt.Errorf("update interaction time: %w", err)
		}
		if msg.ID == "" {
			return nil
		}
		if msg.FromMe {
			if !r.tracker.Consume(msg.ID) {
				if err := r.store.SaveMessage(user.ID, text, models.SourceManual); err != nil {
					return fmt.Errorf("save agent message: %w", err)
				}
				log.Printf("Mensaje de agente guardado | a=%s texto=%q", user.PhoneNumber, text)
			}
			return nil
		}
		if err := r.store.SaveMessage(user.ID, text, models.SourceUser); err != nil {
			return fmt.Errorf("save user message: %w", err)
		}
		log.Printf("Mensaje de usuario (a agente) guardado | de=%s texto=%q", user.PhoneNumber, text)
		return nil
	}

	// Outgoing traffic: either the echo of a bot reply we already saved, or
	// a manual send from the paired phone.
	if msg.FromMe {
		if msg.ID == "" {
			return nil
		}
		if r.tracker.Consume(msg.ID) {
			log.Printf("Respuesta de bot confirmada | a=%s id=%s", user.PhoneNumber, msg.ID)
			return nil
		}
		if err := r.store.SaveMessage(user.ID, text, models.SourceManual); err != nil {
			return fmt.Errorf("save manual message: %w", err)
		}
		log.Printf("Mensaje manual guardado | a=%s texto=%q", user.PhoneNumber, text)
		return nil
	}

	// Genuine inbound user message.
	if msg.ID == "" {
		return nil
	}
	if err := r.store.SaveMessage(user.ID, text, models.SourceUser); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	log.Printf("Mensaje recibido | de=%s estado=%s texto=%q", user.PhoneNumber, user.State, text)

	// Placeholders and empty text carry nothing the menu can react to.
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" || strings.HasPrefix(normalized, "[") {
		return nil
	}

	transition := Advance(user.State, text)

	// The transition is committed only after the reply actually went out, so
	// a failed send leaves the state unchanged and the user can re-trigger.
	// Drop the lock for the blocking send; the commit takes it again.
	unlock()
	locked = false

	if transition.Reply == "" {
		return r.commitTransition(msg.SessionID+"|"+contactID, user, transition)
	}

	toSend := RandomizeText(transition.Reply)
	sentID, err := r.sender.SendText(ctx, msg.SessionID, msg.ChatJID, toSend)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	// Register the id before the echo can arrive, then store the reply with
	// its anti-ban signature so the archive matches what went on the wire.
	r.tracker.Register(sentID)
	if err := r.store.SaveMessage(user.ID, toSend, models.SourceBot); err != nil {
		return fmt.Errorf("save bot reply: %w", err)
	}
	if err := r.commitTransition(msg.SessionID+"|"+contactID, user, transition); err != nil {
		return err
	}
	log.Printf("Respuesta enviada | a=%s id=%s", user.PhoneNumber, sentID)
	return nil
}

// commitTransition writes the settled state change under the per-contact
// lock.
func (r *MessageRouter) commitTransition(lockKey string, user *models.User, transition Transition) error {
	unlock := r.locks.lock(lockKey)
	defer unlock()

	if transition.NextState != user.State {
		if err := r.store.UpdateUserState(user.ID, transition.NextState); err != nil {
			return fmt.Errorf("update user state: %w", err)
		}
	}
	if transition.RefreshInteraction {
		if err := r.store.UpdateUserInteractionTime(user.ID); err != nil {
			return fmt.Errorf("update interaction time: %w", err)
		}
	}
	return nil
}
