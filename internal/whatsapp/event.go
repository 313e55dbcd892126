package whatsapp

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
)

// IncomingMessage is one inbound platform event, flattened to what the router
// needs. JIDs travel as strings so nothing outside this package depends on
// the platform library.
type IncomingMessage struct {
	SessionID string
	ChatJID   string // the chat the event belongs to
	SenderJID string
	// Participant carries the real contact address when the delivery path
	// reported a linked/alias chat JID instead. Empty when ChatJID is
	// already the real contact.
	Participant string
	FromMe      bool
	ID          string
	Timestamp   time.Time
	PushName    string
	Type        string // platform content-type key, e.g. "imageMessage"
	Text        string // direct text, caption or document filename; may be empty
}

// extractContent pulls the content-type key and best-effort text out of a raw
// platform message. Captions and document filenames count as text; media
// without either yields an empty string and the router degrades it to a
// placeholder.
func extractContent(msg *waE2E.Message) (msgType, text string) {
	switch {
	case msg == nil:
		return "unknown", ""
	case msg.GetConversation() != "":
		return "conversation", msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		return "extendedTextMessage", msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		return "imageMessage", msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return "videoMessage", msg.GetVideoMessage().GetCaption()
	case msg.GetAudioMessage() != nil:
		return "audioMessage", ""
	case msg.GetDocumentMessage() != nil:
		return "documentMessage", msg.GetDocumentMessage().GetFileName()
	case msg.GetStickerMessage() != nil:
		return "stickerMessage", ""
	case msg.GetContactMessage() != nil:
		return "contactMessage", ""
	case msg.GetLocationMessage() != nil:
		return "locationMessage", ""
	case msg.GetProtocolMessage() != nil:
		return "protocolMessage", ""
	case msg.GetSenderKeyDistributionMessage() != nil:
		return "senderKeyDistributionMessage", ""
	default:
		return "unknown", ""
	}
}
