// Package api serves the HTTP control surface: deck status, commands, and
// the audio streams of any stream devices.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/lo"

	"github.com/satindergrewal/djdeck/internal/command"
	"github.com/satindergrewal/djdeck/internal/deck"
	"github.com/satindergrewal/djdeck/internal/engine"
	"github.com/satindergrewal/djdeck/internal/mixer"
	"github.com/satindergrewal/djdeck/internal/pcm"
	"github.com/satindergrewal/djdeck/internal/stream"
)

// Engine is the part of the engine the API uses.
type Engine interface {
	Snapshots() []deck.Snapshot
	Execute(line string) (command.Result, error)
	Outputs() []*mixer.Output
	Broadcasters() []*stream.Broadcaster
}

type outputStatus struct {
	Name      string `json:"name"`
	Route     string `json:"route"`
	Status    string `json:"status"`
	Reads     uint64 `json:"reads"`
	Underruns uint64 `json:"underruns"`
}

// Server routes the HTTP API.
type Server struct {
	eng    Engine
	webrtc []*stream.WebRTCHandler
	mux    *http.ServeMux
}

// NewServer registers every route. The first broadcaster is also served at
// /stream and /offer; each one is reachable at /stream/{name} and
// /offer/{name}.
func NewServer(eng Engine) *Server {
	s := &Server{eng: eng, mux: http.NewServeMux()}

	for i, b := range eng.Broadcasters() {
		httpHandler := stream.NewHTTPHandler(b)
		rtc := stream.NewWebRTCHandler(b)
		s.webrtc = append(s.webrtc, rtc)
		s.mux.Handle("/stream/"+b.Name(), httpHandler)
		s.mux.Handle("/offer/"+b.Name(), rtc)
		if i == 0 {
			s.mux.Handle("/stream", httpHandler)
			s.mux.Handle("/offer", rtc)
		}
	}

	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/command", s.handleCommand)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	outputs := lo.Map(s.eng.Outputs(), func(o *mixer.Output, _ int) outputStatus {
		return outputStatus{
			Name:      o.Name(),
			Route:     o.Route().String(),
			Status:    o.Status().String(),
			Reads:     o.Reads(),
			Underruns: o.Underruns(),
		}
	})
	streams := lo.Map(s.eng.Broadcasters(), func(b *stream.Broadcaster, _ int) stream.Stats { return b.Stats() })
	peers := lo.SumBy(s.webrtc, func(h *stream.WebRTCHandler) int { return h.PeerCount() })

	writeJSON(w, http.StatusOK, map[string]any{
		"decks":        s.eng.Snapshots(),
		"outputs":      outputs,
		"streams":      streams,
		"webrtc_peers": peers,
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		http.Error(w, "invalid command", http.StatusBadRequest)
		return
	}

	res, err := s.eng.Execute(req.Command)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": res.Message, "decks": res.Decks})
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrUnknownCommand), errors.Is(err, command.ErrUsage):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDeckIndex), errors.Is(err, pcm.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, deck.ErrNoTrack), errors.Is(err, deck.ErrBeatGridUnavailable), errors.Is(err, deck.ErrInvalidMode):
		return http.StatusConflict
	case errors.Is(err, pcm.ErrFormat):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
