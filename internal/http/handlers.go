package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finsight/internal/core"
	"finsight/internal/insight"
	"finsight/internal/log"
	"finsight/internal/view"
)

// frameResponse is a panel frame plus HTML renderings of ready insights.
type frameResponse struct {
	view.AnyFrame
	InsightsHTML map[string]string `json:"insights_html"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	newJSONResponse(map[string][]string{"panels": s.dashboard.Panels()}).Write(w, r)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.dashboard.ListGoals(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Goal list unavailable", log.FieldError, err.Error())
		errorResponse(r, http.StatusBadGateway, "goals unavailable").Write(w, r)
		return
	}
	newJSONResponse(goals).Write(w, r)
}

// handleView switches the panel when the query names a different selection
// and answers with the panel's current frame.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("panel")
	panel, ok := s.dashboard.Panel(name)
	if !ok {
		errorResponse(r, http.StatusNotFound, fmt.Sprintf("unknown panel %q", name)).Write(w, r)
		return
	}

	current := panel.Selection()
	sel, err := parseSelection(name, r.URL.Query(), current)
	if err != nil {
		errorResponse(r, statusForSelectionError(err), err.Error()).Write(w, r)
		return
	}

	if sel != current || wantsRefresh(r.URL.Query()) {
		if s.limiter != nil && !s.limiter.Allow(extractClientIP(r)) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Panel reload rate limited",
				log.FieldPanel, name, log.FieldClientIP, extractClientIP(r))
			w.Header().Set("Retry-After", "60")
			errorResponse(r, http.StatusTooManyRequests, "too many reloads, try again later").Write(w, r)
			return
		}
		// The panel is shared, so a client going away must not fail its load.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.selectTimeout)
		defer cancel()
		// Fetch errors are already flagged on the frame.
		if err := panel.Select(loadCtx, sel); err != nil && !errors.Is(err, view.ErrStaleSelection) {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Selection loaded with errors",
				log.FieldPanel, name, log.FieldSelection, sel.String(), log.FieldError, err.Error())
		}
	}

	newJSONResponse(s.renderFrame(r, panel.Latest())).Write(w, r)
}

// handleEvents streams frames as server-sent events until the client goes
// away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("panel")
	panel, ok := s.dashboard.Panel(name)
	if !ok {
		errorResponse(r, http.StatusNotFound, fmt.Sprintf("unknown panel %q", name)).Write(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		errorResponse(r, http.StatusInternalServerError, "streaming not supported").Write(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	frames := panel.Watch(ctx)
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case f, open := <-frames:
			if !open {
				return
			}
			data, err := json.Marshal(s.renderFrame(r, f))
			if err != nil {
				log.FromContext(ctx).ErrorContext(ctx, "Failed to encode frame", log.FieldError, err.Error())
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: frame\ndata: %s\n\n", f.Version, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) renderFrame(r *http.Request, f view.AnyFrame) frameResponse {
	out := frameResponse{AnyFrame: f, InsightsHTML: map[string]string{}}
	for key, st := range f.Insights {
		if st.Status != insight.StatusReady {
			continue
		}
		html, err := s.renderer.Render(st.Text)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Insight markdown not rendered",
				log.FieldSectionKey, key, log.FieldError, err.Error())
			continue
		}
		out.InsightsHTML[key] = html
	}
	return out
}

var _ Dashboard = (*view.Dashboard)(nil)

// statusForSelectionError maps selection parsing errors to status codes.
func statusForSelectionError(err error) int {
	if errors.Is(err, core.ErrInvalidPeriod) || errors.Is(err, core.ErrEmptyGoal) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
