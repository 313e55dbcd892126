package handlers

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nachoDevOS/whatsapp-server/internal/config"
	"github.com/nachoDevOS/whatsapp-server/internal/services"
	"github.com/nachoDevOS/whatsapp-server/internal/utils"
	"github.com/nachoDevOS/whatsapp-server/internal/whatsapp"
)

// maxMediaBytes caps media downloads for /send attachments.
const maxMediaBytes = 50 << 20

var mediaClient = &http.Client{Timeout: 60 * time.Second}

// MessageHandler serves the outbound-send API.
type MessageHandler struct {
	manager *whatsapp.Manager
	tracker *services.SentTracker
	cfg     *config.Config
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(manager *whatsapp.Manager, tracker *services.SentTracker, cfg *config.Config) *MessageHandler {
	return &MessageHandler{
		manager: manager,
		tracker: tracker,
		cfg:     cfg,
	}
}

// Test sends a canned message to the configured developer phone. With
// typing=true it first shows a composing presence for a natural-looking
// pause before the send.
func (h *MessageHandler) Test(c *fiber.Ctx) error {
	sessionID := c.Query("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Falta el parámetro id",
		})
	}
	if h.cfg.DevPhone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "DEV_PHONE no está configurado",
		})
	}

	if c.Query("typing") == "true" {
		typingFor := time.Duration(2000+rand.Intn(2000)) * time.Millisecond
		if err := h.manager.SendTyping(c.Context(), sessionID, h.cfg.DevPhone, typingFor); err != nil {
			log.Printf("⚠️ Error enviando presencia: %v", err)
		}
	}

	text := services.RandomizeText(fmt.Sprintf("Hola %s! 👋 Este es un mensaje de prueba de %s.", h.cfg.DevName, h.cfg.Name))
	id, err := h.manager.SendText(c.Context(), sessionID, h.cfg.DevPhone, text)
	if err != nil {
		log.Printf("❌ Error enviando mensaje de prueba: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "No se pudo enviar el mensaje de prueba",
		})
	}
	h.tracker.Register(id)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Mensaje de prueba enviado",
	})
}

type sendRequest struct {
	Session  string `json:"session"`
	Phone    string `json:"phone"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
	AudioURL string `json:"audio_url"`
	VideoURL string `json:"video_url"`
}

// Send delivers a text or media message to an arbitrary phone number.
// A short random pause before the send keeps API traffic from looking
// machine-timed.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Cuerpo de la petición inválido",
		})
	}
	if req.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Falta el campo phone",
		})
	}
	if req.Text == "" && req.ImageURL == "" && req.AudioURL == "" && req.VideoURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Nada que enviar",
		})
	}

	sessionID := req.Session
	if sessionID == "" {
		sessionID = h.manager.FirstSession()
	}
	if sessionID == "" || !h.manager.HasSession(sessionID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "No hay ninguna sesión conectada",
		})
	}

	// Human-like pause of 1-3 seconds before delivering.
	pause := time.Duration(1000+rand.Intn(2000)) * time.Millisecond
	select {
	case <-time.After(pause):
	case <-c.Context().Done():
		return c.Context().Err()
	}

	text := services.RandomizeText(req.Text)

	var (
		id  string
		err error
	)
	switch {
	case req.ImageURL != "":
		id, err = h.sendMedia(c, sessionID, req.Phone, req.ImageURL, text, mediaKindImage)
	case req.AudioURL != "":
		id, err = h.sendMedia(c, sessionID, req.Phone, req.AudioURL, "", mediaKindAudio)
	case req.VideoURL != "":
		id, err = h.sendMedia(c, sessionID, req.Phone, req.VideoURL, text, mediaKindVideo)
	default:
		id, err = h.manager.SendText(c.Context(), sessionID, req.Phone, text)
	}
	if err != nil {
		log.Printf("❌ Error enviando mensaje a %s: %v", req.Phone, err)
		utils.LogSentMessage(req.Phone, req.Text, "error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "No se pudo enviar el mensaje",
		})
	}

	h.tracker.Register(id)
	utils.LogSentMessage(req.Phone, req.Text, "sent")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Mensaje enviado",
		"id":      id,
	})
}

type mediaKind int

const (
	mediaKindImage mediaKind = iota
	mediaKindAudio
	mediaKindVideo
)

func (h *MessageHandler) sendMedia(c *fiber.Ctx, sessionID, phone, url, caption string, kind mediaKind) (string, error) {
	data, mimetype, err := downloadMedia(url)
	if err != nil {
		return "", fmt.Errorf("descargando adjunto: %w", err)
	}

	switch kind {
	case mediaKindImage:
		return h.manager.SendImage(c.Context(), sessionID, phone, caption, data, mimetype)
	case mediaKindAudio:
		return h.manager.SendVoiceNote(c.Context(), sessionID, phone, data, mimetype)
	default:
		return h.manager.SendVideo(c.Context(), sessionID, phone, caption, data, mimetype)
	}
}

func downloadMedia(url string) ([]byte, string, error) {
	resp, err := mediaClient.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("estado inesperado %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", err
	}

	mimetype := resp.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}
	return data, mimetype, nil
}
