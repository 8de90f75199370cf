package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/progress"
	"github.com/licitaradar/radar/internal/store"
)

// handleEvents streams a session's progress events. An unknown search
// id is a 404, never a silent empty stream; a finished session gets a
// single synthesized terminal event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErrorCode(w, r, http.StatusInternalServerError, model.ErrInternal, id, "streaming unsupported")
		return
	}

	ch, cancel := s.deps.Bus.Subscribe(id)
	defer cancel()

	if ch == nil {
		sess, err := s.deps.Store.GetSession(r.Context(), id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				s.writeErrorCode(w, r, http.StatusNotFound, model.ErrValidation, id, "unknown search")
				return
			}
			s.writeError(w, r, id, err)
			return
		}
		if !sess.Status.Terminal() {
			// Known but not streaming: the pipeline rebooted under it.
			s.writeErrorCode(w, r, http.StatusNotFound, model.ErrValidation, id, "search no longer streaming")
			return
		}
		s.startStream(w)
		writeEvent(w, terminalEventFor(sess))
		flusher.Flush()
		return
	}

	s.startStream(w)
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) startStream(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w http.ResponseWriter, ev progress.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// terminalEventFor reconstructs the terminal event of a session whose
// stream is already gone.
func terminalEventFor(sess *model.SearchSession) progress.Event {
	ev := progress.Event{
		SessionID: sess.ID,
		At:        time.Now().UTC(),
	}
	if sess.Status == model.StatusCompleted {
		ev.Type = progress.EventComplete
		ev.Count = sess.ItemsRelevant
		return ev
	}
	ev.Type = progress.EventError
	ev.ErrorCode = string(sess.ErrorCode)
	ev.Message = sess.ErrorMessage
	return ev
}
