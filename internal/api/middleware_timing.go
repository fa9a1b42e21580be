package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// processingTimeWriter wraps gin.ResponseWriter to stamp a Server-Timing
// header on the /health and / responses, since the /ws handshake itself is
// hijacked by the websocket upgrader before any of these methods fire.
type processingTimeWriter struct {
	gin.ResponseWriter
	startTime     time.Time
	headerWritten bool
}

func (w *processingTimeWriter) writeServerTimingHeader() {
	if !w.headerWritten {
		elapsed := time.Since(w.startTime)
		latency := float64(elapsed.Nanoseconds()) / 1000000.0
		w.Header().Set("Server-Timing", fmt.Sprintf("total;dur=%.2f;desc=\"request processing time\"", latency))
		w.headerWritten = true
	}
}

func (w *processingTimeWriter) WriteHeader(statusCode int) {
	w.writeServerTimingHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *processingTimeWriter) Write(data []byte) (int, error) {
	w.writeServerTimingHeader()
	return w.ResponseWriter.Write(data)
}

func (w *processingTimeWriter) WriteHeaderNow() {
	w.writeServerTimingHeader()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *processingTimeWriter) Flush() {
	w.writeServerTimingHeader()
	w.ResponseWriter.Flush()
}

func processingTimeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ptw := &processingTimeWriter{
			ResponseWriter: c.Writer,
			startTime:      start,
		}
		c.Writer = ptw

		c.Next()

		c.Set("processingTime", time.Since(start).Seconds()*1000)
	}
}
