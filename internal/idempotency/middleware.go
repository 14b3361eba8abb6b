package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched.
func Middleware(store Store, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("idempotency")

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderKey))
		if key == "" || store == nil {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			abort(c, http.StatusBadRequest, "invalid_request", "Idempotency-Key must be at most 255 characters.")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid_request", "Request body could not be read.")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		fp := fingerprint(c.Request.Method, c.Request.URL.Path, body)
		rec, claimed, err := store.Begin(ctx, key, fp, ttl)
		if err != nil {
			obslogger.WithContext(ctx, log).Error("idempotency begin failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, "internal_error", "An unexpected error occurred.")
			return
		}

		if !claimed {
			switch {
			case rec.Fingerprint != fp:
				abort(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
					"Idempotency-Key was already used with a different request.")
			case rec.Status != StatusCompleted:
				abort(c, http.StatusConflict, "idempotency_request_in_flight",
					"A request with this Idempotency-Key is still being processed.")
			default:
				c.Header(HeaderReplayed, "true")
				c.Data(rec.StatusCode, rec.ContentType, rec.Body)
				c.Abort()
			}
			return
		}

		// The client may be gone by now; the record must still settle.
		settleCtx := context.WithoutCancel(ctx)
		defer func() {
			if r := recover(); r != nil {
				if err := store.Release(settleCtx, key); err != nil {
					obslogger.WithContext(ctx, log).Warn("idempotency release failed", zap.Error(err))
				}
				panic(r)
			}
		}()

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		// Handler errors are rendered later by the error middleware, so an
		// unwritten response with c.Errors set is a failure too.
		status := writer.Status()
		if len(c.Errors) > 0 || !writer.Written() || status < 200 || status >= 300 {
			if err := store.Release(settleCtx, key); err != nil {
				obslogger.WithContext(ctx, log).Warn("idempotency release failed", zap.Error(err))
			}
			return
		}

		err = store.Complete(settleCtx, key, Record{
			Fingerprint: fp,
			StatusCode:  status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}, ttl)
		if err != nil {
			obslogger.WithContext(ctx, log).Warn("idempotency complete failed", zap.Error(err))
		}
	}
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func abort(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"type":    errType,
			"message": message,
		},
	})
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
