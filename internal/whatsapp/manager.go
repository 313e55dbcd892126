package whatsapp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/nachoDevOS/whatsapp-server/internal/storage"
)

// Manager owns the WhatsApp client connections, one per session id. All
// inbound messages from every session are funneled into a single event
// channel consumed by the router's dispatcher loop.
type Manager struct {
	container *sqlstore.Container
	store     storage.Store

	mu      sync.RWMutex
	clients map[string]*whatsmeow.Client

	events chan IncomingMessage

	// Lifecycle callbacks, forwarded to the realtime push channel.
	OnQR        func(sessionID, code string)
	OnConnected func(sessionID string)
	OnLoggedOut func(sessionID string)
}

// NewManager opens the device credential store (whatsmeow's own SQLite
// container, the equivalent of the session credential files).
func NewManager(ctx context.Context, dbPath string, store storage.Store) (*Manager, error) {
	dbLog := waLog.Stdout("Database", "ERROR", true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}

	return &Manager{
		container: container,
		store:     store,
		clients:   make(map[string]*whatsmeow.Client),
		events:    make(chan IncomingMessage, 64),
	}, nil
}

// Events returns the inbound message stream shared by all sessions.
func (m *Manager) Events() <-chan IncomingMessage {
	return m.events
}

// LoadSessionsFromStorage reconnects every session that already has a paired
// device. Called once at boot.
func (m *Manager) LoadSessionsFromStorage(ctx context.Context) {
	sessions, err := m.store.ListSessions()
	if err != nil {
		log.Printf("⚠️  Could not list sessions for restore: %v", err)
		return
	}

	restored := 0
	for _, session := range sessions {
		if session.DeviceJID == "" {
			continue
		}
		jid, err := types.ParseJID(session.DeviceJID)
		if err != nil {
			log.Printf("⚠️  Session %s has an invalid device JID %q: %v", session.SessionID, session.DeviceJID, err)
			continue
		}
		device, err := m.container.GetDevice(ctx, jid)
		if err != nil || device == nil {
			log.Printf("⚠️  No stored device for session %s (%s)", session.SessionID, session.DeviceJID)
			continue
		}

		client := m.newClient(session.SessionID, device)
		if err := client.Connect(); err != nil {
			log.Printf("⚠️  Could not reconnect session %s: %v", session.SessionID, err)
			continue
		}
		restored++
	}
	log.Printf("Sesiones restauradas: %d", restored)
}

// HasSession reports whether a client exists for the session id.
func (m *Manager) HasSession(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.clients[sessionID]
	return exists
}

// FirstSession returns the id of a connected session, or "" when none is
// logged in. Used by API sends that do not name a session explicitly.
func (m *Manager) FirstSession() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, client := range m.clients {
		if client.IsLoggedIn() {
			return id
		}
	}
	return ""
}

// StartSession creates a fresh device for the session and begins the QR
// pairing flow. QR codes are delivered through OnQR; the device JID is
// persisted once pairing succeeds.
func (m *Manager) StartSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if _, exists := m.clients[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s already started", sessionID)
	}
	device := m.container.NewDevice()
	client := m.newClientLocked(sessionID, device)
	m.mu.Unlock()

	// The QR channel must be requested before Connect.
	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		m.removeClient(sessionID)
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		m.removeClient(sessionID)
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				if m.OnQR != nil {
					m.OnQR(sessionID, item.Code)
				}
			case "success":
				if client.Store.ID != nil {
					if err := m.store.SaveSessionDevice(sessionID, client.Store.ID.String()); err != nil {
						log.Printf("⚠️  Could not persist device for session %s: %v", sessionID, err)
					}
				}
				log.Printf("session connected: %s", sessionID)
			default:
				// timeout or pairing error; drop the half-open client so the
				// next /login starts over
				log.Printf("QR flow for session %s ended: %s", sessionID, item.Event)
				m.removeClient(sessionID)
				return
			}
		}
	}()

	return nil
}

// DeleteSession logs the session out and forgets its client and device
// mapping. Used when the platform reports the credentials are gone.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	client, exists := m.clients[sessionID]
	delete(m.clients, sessionID)
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("session %s not started", sessionID)
	}

	if client.IsLoggedIn() {
		if err := client.Logout(ctx); err != nil {
			log.Printf("⚠️  Logout for session %s failed: %v", sessionID, err)
		}
	}
	client.Disconnect()
	return m.store.SaveSessionDevice(sessionID, "")
}

// Disconnect closes every client connection. In-flight sends should be done
// by the time this is called.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sessionID, client := range m.clients {
		client.Disconnect()
		delete(m.clients, sessionID)
	}
}

// SendText sends plain text and returns the platform-assigned message id.
func (m *Manager) SendText(ctx context.Context, sessionID, to, text string) (string, error) {
	client, jid, err := m.target(sessionID, to)
	if err != nil {
		return "", err
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// SendTyping shows the composing indicator for the given duration.
func (m *Manager) SendTyping(ctx context.Context, sessionID, to string, duration time.Duration) error {
	client, jid, err := m.target(sessionID, to)
	if err != nil {
		return err
	}
	if err := client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText); err != nil {
		return err
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return ctx.Err()
	}
	return client.SendChatPresence(ctx, jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
}

// SendImage uploads the media blob and sends it with an optional caption.
func (m *Manager) SendImage(ctx context.Context, sessionID, to, caption string, data []byte, mimetype string) (string, error) {
	client, jid, err := m.target(sessionID, to)
	if err != nil {
		return "", err
	}
	uploaded, err := client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// SendVoiceNote uploads the media blob and sends it as a push-to-talk note.
func (m *Manager) SendVoiceNote(ctx context.Context, sessionID, to string, data []byte, mimetype string) (string, error) {
	client, jid, err := m.target(sessionID, to)
	if err != nil {
		return "", err
	}
	uploaded, err := client.Upload(ctx, data, whatsmeow.MediaAudio)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{
			PTT:           proto.Bool(true),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// SendVideo uploads the media blob and sends it with an optional caption.
func (m *Manager) SendVideo(ctx context.Context, sessionID, to, caption string, data []byte, mimetype string) (string, error) {
	client, jid, err := m.target(sessionID, to)
	if err != nil {
		return "", err
	}
	uploaded, err := client.Upload(ctx, data, whatsmeow.MediaVideo)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{
		VideoMessage: &waE2E.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

func (m *Manager) target(sessionID, to string) (*whatsmeow.Client, types.JID, error) {
	m.mu.RLock()
	client, exists := m.clients[sessionID]
	m.mu.RUnlock()
	if !exists {
		return nil, types.JID{}, fmt.Errorf("session %s not started", sessionID)
	}

	var jid types.JID
	var err error
	if strings.Contains(to, "@") {
		jid, err = types.ParseJID(to)
		if err != nil {
			return nil, types.JID{}, fmt.Errorf("invalid destination %q: %w", to, err)
		}
	} else {
		jid = types.NewJID(to, types.DefaultUserServer)
	}
	return client, jid, nil
}

func (m *Manager) newClient(sessionID string, device *wstore.Device) *whatsmeow.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newClientLocked(sessionID, device)
}

func (m *Manager) newClientLocked(sessionID string, device *wstore.Device) *whatsmeow.Client {
	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "ERROR", true))
	client.AddEventHandler(m.eventHandler(sessionID))
	m.clients[sessionID] = client
	return client
}

func (m *Manager) removeClient(sessionID string) {
	m.mu.Lock()
	client, exists := m.clients[sessionID]
	delete(m.clients, sessionID)
	m.mu.Unlock()
	if exists {
		client.Disconnect()
	}
}

// eventHandler converts platform events for one session into the shared
// inbound stream and lifecycle callbacks.
func (m *Manager) eventHandler(sessionID string) func(interface{}) {
	return func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			msgType, text := extractContent(v.Message)

			msg := IncomingMessage{
				SessionID: sessionID,
				ChatJID:   v.Info.Chat.String(),
				SenderJID: v.Info.Sender.String(),
				FromMe:    v.Info.IsFromMe,
				ID:        string(v.Info.ID),
				Timestamp: v.Info.Timestamp,
				PushName:  v.Info.PushName,
				Type:      msgType,
				Text:      text,
			}
			// Some delivery paths report a linked alias as the chat; the
			// sender field then carries the real contact.
			if !v.Info.IsFromMe && v.Info.Sender.User != v.Info.Chat.User {
				msg.Participant = v.Info.Sender.String()
			}

			m.events <- msg

		case *events.Connected:
			log.Printf("session connected: %s", sessionID)
			if m.OnConnected != nil {
				m.OnConnected(sessionID)
			}

		case *events.LoggedOut:
			log.Printf("Sesión desconectada: %s", sessionID)
			m.removeClient(sessionID)
			if err := m.store.SaveSessionDevice(sessionID, ""); err != nil {
				log.Printf("⚠️  Could not clear device for session %s: %v", sessionID, err)
			}
			if m.OnLoggedOut != nil {
				m.OnLoggedOut(sessionID)
			}
		}
	}
}
