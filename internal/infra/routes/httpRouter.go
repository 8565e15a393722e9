package routes

import (
	"encoding/json"
	"net/http"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/infra/handlers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Routes struct {
	Mux             *mux.Router
	CommandHandlers *handlers.CommandHandlers
	SpeechHandlers  *handlers.SpeechHandlers
}

func NewRoutes(mux *mux.Router, commandHandlers *handlers.CommandHandlers, speechHandlers *handlers.SpeechHandlers) *Routes {
	return &Routes{mux, commandHandlers, speechHandlers}
}

func (r *Routes) Init() {
	r.Mux.HandleFunc("/process-command", r.CommandHandlers.ProcessCommand).Methods(http.MethodPost)
	r.Mux.HandleFunc("/gemini/tool-call", r.CommandHandlers.ToolCall).Methods(http.MethodPost)
	r.Mux.HandleFunc("/sessions/{session_id}/commands", r.CommandHandlers.SessionCommands).Methods(http.MethodGet)

	r.Mux.HandleFunc("/tts", r.SpeechHandlers.TextToSpeech).Methods(http.MethodPost)
	r.Mux.HandleFunc("/stt", r.SpeechHandlers.SpeechToText).Methods(http.MethodPost)
	r.Mux.HandleFunc("/voice", r.SpeechHandlers.Voice).Methods(http.MethodPost)

	r.Mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dto.HealthResponse{Status: "ok"})
	}).Methods(http.MethodGet)
}
