package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/entities"
	Iservices "voice-banking/internal/domain/interfaces/services"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/metrics"

	"github.com/gorilla/mux"
)

type CommandHandlers struct {
	Logger     *logger.Logger
	Router     Iservices.ICommandRouterService
	CommandLog Iservices.ICommandLogService
}

func NewCommandHandlers(logger *logger.Logger, router Iservices.ICommandRouterService, commandLog Iservices.ICommandLogService) *CommandHandlers {
	return &CommandHandlers{Logger: logger, Router: router, CommandLog: commandLog}
}

func (th *CommandHandlers) ProcessCommand(w http.ResponseWriter, r *http.Request) {
	var request dto.VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDetail(w, http.StatusBadRequest, "Error to process JSON")
		return
	}
	defer r.Body.Close()

	metrics.CommandsProcessed.WithLabelValues("process_command").Inc()
	response, err := th.Router.Process(r.Context(), request)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to process command: %v", err))
		writeDetail(w, http.StatusInternalServerError, "Failed to process command.")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (th *CommandHandlers) ToolCall(w http.ResponseWriter, r *http.Request) {
	var request dto.VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDetail(w, http.StatusBadRequest, "Error to process JSON")
		return
	}
	defer r.Body.Close()

	metrics.CommandsProcessed.WithLabelValues("tool_call").Inc()
	response, err := th.Router.SelectTool(r.Context(), request.SpokenText)
	if errors.Is(err, provider.ErrNotConfigured) {
		writeDetail(w, http.StatusInternalServerError, "GEMINI_API_KEY is missing.")
		return
	}
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Tool selection failed: %v", err))
		writeDetail(w, http.StatusBadGateway, "Model request failed.")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (th *CommandHandlers) SessionCommands(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	records, err := th.CommandLog.FindBySession(r.Context(), sessionID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to load session commands.")
		return
	}
	if records == nil {
		records = []entities.CommandRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}
