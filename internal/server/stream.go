package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"shopdesk-backend/internal/logging"
	"shopdesk-backend/internal/metrics"
	"shopdesk-backend/internal/support"
	"shopdesk-backend/internal/types"
)

// streamReply produces the full reply once, then writes it fragment by fragment
// with a fixed pause to mimic typing.
func (s *Server) streamReply(w http.ResponseWriter, r *http.Request, req types.ChatRequest) {
	log := logging.FromContext(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("response writer does not support streaming")
		s.writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	reply, err := s.pipeline.Prepare(r.Context(), req.Message, req.Context)
	if err != nil {
		log.WithError(err).Warn("stream reply failed")
		_, _ = io.WriteString(w, streamErrorFragment)
		flusher.Flush()
		return
	}
	metrics.RecordReply(reply.Type)

	if err := s.emit(r.Context(), w, flusher, support.SplitFragments(reply.Response)); err != nil {
		log.WithError(err).Warn("stream emission failed")
		_, _ = io.WriteString(w, streamErrorFragment)
		flusher.Flush()
	}
}

// emit writes fragments in order. A cancelled context ends emission quietly.
func (s *Server) emit(ctx context.Context, w io.Writer, flusher http.Flusher, fragments []string) error {
	for i, frag := range fragments {
		if i > 0 && !s.pause(ctx) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if _, err := io.WriteString(w, frag); err != nil {
			return err
		}
		flusher.Flush()
	}
	return nil
}

func (s *Server) pause(ctx context.Context) bool {
	if s.fragmentDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.fragmentDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
