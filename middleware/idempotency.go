package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/gin-gonic/gin"
)

const IdempotencyHeader = "Idempotency-Key"

const inProgress = "in_progress"

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a previous request that carried
// the same Idempotency-Key for the same user. Requests without the header, or
// with no cache configured, pass through. 5xx responses are not stored so the
// client can retry them.
func Idempotency(c cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := strings.TrimSpace(ctx.GetHeader(IdempotencyHeader))
		if key == "" || c == nil {
			ctx.Next()
			return
		}
		reqCtx := ctx.Request.Context()
		cacheKey := c.GenerateKey("idempotency", fmt.Sprintf("%d:%s:%s", UserID(ctx), ctx.FullPath(), key))

		acquired, err := c.SetNX(reqCtx, cacheKey, inProgress, ttl)
		if err != nil {
			slog.WarnContext(reqCtx, "idempotency store unavailable", "error", err)
			ctx.Next()
			return
		}
		if !acquired {
			raw, err := c.Get(reqCtx, cacheKey)
			if err != nil || raw == "" {
				ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "request with this Idempotency-Key could not be replayed"})
				return
			}
			if raw == inProgress {
				ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "request with this Idempotency-Key is in progress"})
				return
			}
			var stored storedResponse
			if err := json.Unmarshal([]byte(raw), &stored); err != nil {
				ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "request with this Idempotency-Key could not be replayed"})
				return
			}
			ctx.Header("Idempotent-Replayed", "true")
			ctx.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			ctx.Abort()
			return
		}

		// a panicking handler must not leave the key held until ttl expires
		defer func() {
			if rec := recover(); rec != nil {
				if err := c.Delete(reqCtx, cacheKey); err != nil {
					slog.WarnContext(reqCtx, "idempotency key release failed", "error", err)
				}
				panic(rec)
			}
		}()

		w := &recordingWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = w
		ctx.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError || !json.Valid(w.body.Bytes()) {
			if err := c.Delete(reqCtx, cacheKey); err != nil {
				slog.WarnContext(reqCtx, "idempotency key release failed", "error", err)
			}
			return
		}
		data, _ := json.Marshal(storedResponse{Status: status, Body: w.body.Bytes()})
		if err := c.Set(reqCtx, cacheKey, string(data), ttl); err != nil {
			slog.WarnContext(reqCtx, "idempotency response not stored", "error", err)
		}
	}
}
