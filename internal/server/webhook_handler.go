package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/service"
)

// signatureHeader carries the provider's base64 HMAC-SHA256 signature
// of the raw request body.
const signatureHeader = "X-Webhook-Signature"

// handleProviderWebhook receives asynchronous provider callbacks.
// Delivery is at-least-once and possibly duplicated; everything past
// signature and payload validation answers 200 so the provider never
// retries a callback whose side effects already ran.
func (s *Server) handleProviderWebhook(c *gin.Context) {
	// The signature covers the exact bytes, so the body is read
	// verbatim before any parsing.
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.Logger.Warn("Failed to read webhook body", zap.Error(err))
		c.String(http.StatusBadRequest, "Invalid request")
		return
	}

	s.Logger.Info("Received provider webhook")

	if secret := s.Config.Provider.WebhookSecret; secret != "" {
		if !verifySignature(body, secret, c.GetHeader(signatureHeader)) {
			s.Logger.Warn("Invalid webhook signature")
			c.String(http.StatusBadRequest, "Invalid signature")
			return
		}
	}

	var payload service.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.ID == "" {
		s.Logger.Warn("Invalid webhook payload")
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}

	if err := s.Webhooks.Process(c.Request.Context(), &payload, body); err != nil {
		// Errors are recorded on the audit log entry; a non-success
		// response here would only trigger provider retries against an
		// already-logged, possibly already-mutated item.
		s.Logger.Error("Error processing provider webhook",
			zap.String("job_id", payload.ID),
			zap.Error(err))
		c.String(http.StatusOK, "Error logged")
		return
	}

	c.String(http.StatusOK, "OK")
}

func verifySignature(body []byte, secret, received string) bool {
	if received == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(received))
}
