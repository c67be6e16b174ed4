package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/gin-gonic/gin"
)

const SignatureHeader = "X-Webhook-Signature"

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookAuth verifies the provider webhook signature over the raw body and
// restores the body for the handler. An empty secret rejects every request.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			slog.ErrorContext(c.Request.Context(), "webhook secret not set, rejecting webhook")
			apperr.Respond(c, apperr.New(apperr.ErrForbidden, "webhook signature verification is not configured"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apperr.Respond(c, apperr.Validation("failed to read webhook body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		provided := c.GetHeader(SignatureHeader)
		if provided == "" {
			apperr.Respond(c, apperr.New(apperr.ErrForbidden, "missing webhook signature"))
			return
		}
		expected := Sign(secret, body)
		if !hmac.Equal([]byte(expected), []byte(provided)) {
			apperr.Respond(c, apperr.New(apperr.ErrForbidden, "invalid webhook signature"))
			return
		}
		c.Next()
	}
}
