package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voice-banking/internal/domain/dto"
	Iservices "voice-banking/internal/domain/interfaces/services"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/metrics"
)

const (
	speechKeyMissing = "ELEVENLABS_API_KEY is missing."
	noTranscriptLine = "I didn't catch that. Please try again."
	maxUploadBytes   = 32 << 20
)

type SpeechHandlers struct {
	Logger *logger.Logger
	Speech provider.ISpeechProvider
	Router Iservices.ICommandRouterService
}

func NewSpeechHandlers(logger *logger.Logger, speech provider.ISpeechProvider, router Iservices.ICommandRouterService) *SpeechHandlers {
	return &SpeechHandlers{Logger: logger, Speech: speech, Router: router}
}

func (th *SpeechHandlers) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	var request dto.TtsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDetail(w, http.StatusBadRequest, "Error to process JSON")
		return
	}
	defer r.Body.Close()

	if !th.Speech.Configured() {
		writeDetail(w, http.StatusInternalServerError, speechKeyMissing)
		return
	}

	stream, _, err := th.Speech.StreamSpeech(r.Context(), request.Text)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Speech synthesis failed: %v", err))
		writeDetail(w, http.StatusBadGateway, "Speech synthesis failed.")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if err := copyFlushing(w, stream); err != nil {
		th.Logger.Warn(fmt.Sprintf("Speech stream interrupted: %v", err))
	}
}

// copyFlushing forwards chunks to the client as soon as they arrive.
func copyFlushing(w http.ResponseWriter, src io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (th *SpeechHandlers) SpeechToText(w http.ResponseWriter, r *http.Request) {
	if !th.Speech.Configured() {
		writeDetail(w, http.StatusInternalServerError, speechKeyMissing)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "Expected a multipart form with an audio file.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing form field 'file'.")
		return
	}
	defer file.Close()

	text, err := th.Speech.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Transcription failed: %v", err))
		writeDetail(w, http.StatusBadGateway, "Transcription failed.")
		return
	}

	writeJSON(w, http.StatusOK, dto.SttResponse{Text: text})
}

// Voice accepts a transcript or base64 audio and runs it through the command router.
func (th *SpeechHandlers) Voice(w http.ResponseWriter, r *http.Request) {
	var request dto.VoiceFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDetail(w, http.StatusBadRequest, "Error to process JSON")
		return
	}
	defer r.Body.Close()

	metrics.CommandsProcessed.WithLabelValues("voice").Inc()
	transcript := strings.TrimSpace(request.Transcript)
	if transcript == "" && request.AudioBase64 != "" {
		if !th.Speech.Configured() {
			writeDetail(w, http.StatusInternalServerError, speechKeyMissing)
			return
		}
		audio, err := base64.StdEncoding.DecodeString(request.AudioBase64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "audio_base64 is not valid base64.")
			return
		}
		transcript, err = th.Speech.Transcribe(r.Context(), uploadName(request.MimeType), bytes.NewReader(audio))
		if err != nil {
			th.Logger.Error(fmt.Sprintf("Transcription failed: %v", err))
			writeDetail(w, http.StatusBadGateway, "Transcription failed.")
			return
		}
		transcript = strings.TrimSpace(transcript)
	}

	if transcript == "" {
		line := noTranscriptLine
		writeJSON(w, http.StatusOK, dto.VoiceFlowResponse{SpokenResponse: &line, SessionID: request.SessionID})
		return
	}

	response, err := th.Router.Process(r.Context(), dto.VoiceRequest{SpokenText: transcript, SessionID: request.SessionID})
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to process command: %v", err))
		writeDetail(w, http.StatusInternalServerError, "Failed to process command.")
		return
	}

	writeJSON(w, http.StatusOK, dto.VoiceFlowResponse{
		Transcript:     transcript,
		SpokenResponse: response.SpokenResponse,
		SessionID:      response.SessionID,
		Decision:       response.Decision,
	})
}

func uploadName(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "audio.webm"
	case strings.Contains(mimeType, "wav"):
		return "audio.wav"
	case strings.Contains(mimeType, "ogg"):
		return "audio.ogg"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio.m4a"
	}
	return "audio.mp3"
}
