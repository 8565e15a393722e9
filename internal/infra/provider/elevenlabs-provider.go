package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/metrics"
)

type ElevenLabsProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	Config     config.ElevenLabsConfig
}

func NewElevenLabsProvider(logger *logger.Logger, httpClient *http.Client, cfg config.ElevenLabsConfig) *ElevenLabsProvider {
	return &ElevenLabsProvider{Logger: logger, HttpClient: httpClient, Config: cfg}
}

func (th *ElevenLabsProvider) Configured() bool {
	return th.Config.APIKey != ""
}

// Transcribe uploads an audio file to the speech-to-text endpoint with diarization and audio-event tagging enabled.
func (th *ElevenLabsProvider) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !th.Configured() {
		return "", ErrNotConfigured
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read audio %v", err))
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	fields := map[string]string{
		"model_id":         th.Config.STTModel,
		"tag_audio_events": "true",
		"language_code":    "eng",
		"diarize":          "true",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, th.Config.BaseURL+"/v1/speech-to-text", &form)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to create HTTP request %v", err))
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", th.Config.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := th.HttpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues("elevenlabs", "speech_to_text").Observe(time.Since(start).Seconds())
	if err != nil {
		th.Logger.Error(fmt.Sprintf("HTTP request failed %v", err))
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		th.Logger.Error(fmt.Sprintf("Unexpected HTTP status %s response_body %s", res.Status, string(body)))
		return "", &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var transcript dto.SttResponse
	if err := json.Unmarshal(body, &transcript); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to unmarshal response body %v", err))
		return "", fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return transcript.Text, nil
}

// StreamSpeech starts a text-to-speech stream. The caller owns the returned body.
func (th *ElevenLabsProvider) StreamSpeech(ctx context.Context, text string) (io.ReadCloser, string, error) {
	if !th.Configured() {
		return nil, "", ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": th.Config.TTSModel,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		th.Config.BaseURL, url.PathEscape(th.Config.VoiceID), url.QueryEscape(th.Config.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to create HTTP request %v", err))
		return nil, "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", th.Config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	res, err := th.HttpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues("elevenlabs", "text_to_speech").Observe(time.Since(start).Seconds())
	if err != nil {
		th.Logger.Error(fmt.Sprintf("HTTP request failed %v", err))
		return nil, "", fmt.Errorf("HTTP request failed: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		th.Logger.Error(fmt.Sprintf("Unexpected HTTP status %s response_body %s", res.Status, string(body)))
		return nil, "", &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return res.Body, contentType, nil
}
