// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nachoDevOS/whatsapp-server/internal/config"
)

// httpClient is shared by all token checks. The introspection service is
// remote, so the timeout keeps a stalled check from holding the request.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// TokenAuth validates the bearer token against the external introspection
// endpoint before letting the request through. Single-use tokens: once a
// token passes validation it is invalidated in the background so it cannot
// be replayed. When TOKEN_API is disabled the middleware is a no-op.
func TokenAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.TokenAPI {
			return c.Next()
		}

		token := bearerToken(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token no proporcionado",
			})
		}

		valid, err := validateToken(cfg.TokenValidationURL, token)
		if err != nil {
			log.Printf("❌ Error validando token: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "No se pudo validar el token",
			})
		}
		if !valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token inválido",
			})
		}

		if cfg.TokenInvalidationURL != "" {
			go invalidateToken(cfg.TokenInvalidationURL, token)
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func validateToken(url, token string) (bool, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var body struct {
		IsValid bool `json:"isValid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.IsValid, nil
}

// invalidateToken is fire-and-forget; a failure only means the token stays
// usable a little longer on the issuing side.
func invalidateToken(url, token string) {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ Error invalidando token: %v", err)
		return
	}
	resp.Body.Close()
}
