package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-banking/internal/audio/capture"
	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSpeech struct {
	configured bool
	audio      string
	spoken     string
}

func (s *stubSpeech) Configured() bool { return s.configured }

func (s *stubSpeech) Transcribe(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "pay my electric bill", nil
}

func (s *stubSpeech) StreamSpeech(_ context.Context, text string) (io.ReadCloser, string, error) {
	s.spoken = text
	return io.NopCloser(strings.NewReader(s.audio)), "audio/mpeg", nil
}

type silentSource struct {
	now *time.Time
}

func (s *silentSource) Channels() int { return 1 }
func (s *silentSource) SampleRate() int { return capture.DefaultSampleRate }
func (s *silentSource) Close() error { return nil }

func (s *silentSource) Read(block []float32) error {
	for i := range block {
		block[i] = 0
	}
	*s.now = s.now.Add(250 * time.Millisecond)
	return nil
}

func newTestApp(t *testing.T, nessieURL string) *app {
	t.Helper()
	t.Setenv("NESSIE_API_BASE", nessieURL)

	cfg := config.FromViper(viper.New())
	log := logger.NewDiscardLogger()
	httpClient := &http.Client{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	return &app{
		cfg:        cfg,
		logger:     log,
		httpClient: httpClient,
		bank:       provider.NewNessieProvider(log, httpClient, cfg.Nessie),
		speech:     &stubSpeech{},
		openSource: func(capture.Options) (capture.Source, error) {
			return &silentSource{now: &now}, nil
		},
		now: func() time.Time { return now },
	}
}

func executeCLI(t *testing.T, app *app, args ...string) (string, error) {
	t.Helper()
	return executeCLIContext(t, context.Background(), app, args...)
}

func executeCLIContext(t *testing.T, ctx context.Context, app *app, args ...string) (string, error) {
	t.Helper()

	root := newRootCmdFor(app)
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestAskPrintsSpokenResponseAndDecision(t *testing.T) {
	var received dto.VoiceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/process-command", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		spoken := "I've set up a payment of $250.00 to Dominion Energy. Would you like me to send it now?"
		json.NewEncoder(w).Encode(dto.CommandResponse{
			SpokenResponse: &spoken,
			SessionID:      "sess_1",
			Decision: &dto.Decision{
				Kind:      dto.DecisionNeedsConfirmation,
				RiskLevel: dto.RiskMedium,
				Score:     40,
			},
		})
	}))
	defer server.Close()

	stdout, err := executeCLI(t, newTestApp(t, server.URL), "ask", "--server", server.URL, "--session", "sess_1", "pay", "dominion", "250")
	require.NoError(t, err)

	assert.Equal(t, "pay dominion 250", received.SpokenText)
	assert.Equal(t, "sess_1", received.SessionID)
	assert.Contains(t, stdout, "I've set up a payment of $250.00 to Dominion Energy.")
	assert.Contains(t, stdout, "decision: needs_confirmation (MEDIUM, score 40)")
	assert.Contains(t, stdout, "session: sess_1")
}

func TestAskPrintsPlaceholderForNullResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"spoken_response": null}`))
	}))
	defer server.Close()

	stdout, err := executeCLI(t, newTestApp(t, server.URL), "ask", "--server", server.URL, "hello")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(no response)")
}

func TestAskSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "Error to process JSON"}`))
	}))
	defer server.Close()

	_, err := executeCLI(t, newTestApp(t, server.URL), "ask", "--server", server.URL, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error to process JSON")
}

func TestSeedCreatesDemoData(t *testing.T) {
	t.Setenv("NESSIE_API_KEY", "nessie-key")

	var mu sync.Mutex
	calls := map[string]int{}
	var account dto.NessieAccountRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "nessie-key", r.URL.Query().Get("key"))
		calls[r.URL.Path]++

		id := "created"
		switch r.URL.Path {
		case "/customers":
			id = "cust-1"
		case "/customers/cust-1/accounts":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&account))
			id = "acct-1"
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"code": 201, "message": "Created", "objectCreated": {"_id": "` + id + `"}}`))
	}))
	defer server.Close()

	stdout, err := executeCLI(t, newTestApp(t, server.URL), "seed")
	require.NoError(t, err)

	assert.Equal(t, 1, calls["/customers"])
	assert.Equal(t, 1, calls["/customers/cust-1/accounts"])
	assert.Equal(t, 4, calls["/accounts/acct-1/bills"])
	assert.Equal(t, 3, calls["/accounts/acct-1/withdrawals"])
	assert.Equal(t, float64(5000), account.Balance)
	assert.Contains(t, stdout, "Created bill: State Farm Insurance ($210.00)")
	assert.Contains(t, stdout, "Created purchase: Netflix ($15.99)")
	assert.Contains(t, stdout, "Set DEMO_ACCOUNT_ID=acct-1")
}

func TestSeedRequiresKey(t *testing.T) {
	t.Setenv("NESSIE_API_KEY", "")

	_, err := executeCLI(t, newTestApp(t, "http://127.0.0.1:1"), "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NESSIE_API_KEY is missing")
}

func TestSpeakRequiresKey(t *testing.T) {
	_, err := executeCLI(t, newTestApp(t, "http://127.0.0.1:1"), "speak", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ELEVENLABS_API_KEY is missing")
}

func TestSpeakWritesAudioFile(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")
	speech := &stubSpeech{configured: true, audio: "not-really-mp3"}
	app.speech = speech
	out := filepath.Join(t.TempDir(), "nested", "tts.mp3")

	stdout, err := executeCLI(t, app, "speak", "--out", out, "Your", "balance", "is", "fine")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "not-really-mp3", string(data))
	assert.Equal(t, "Your balance is fine", speech.spoken)
	assert.Contains(t, stdout, "Saved audio to "+out)
}

func TestRecordSurfacesEncoderFailure(t *testing.T) {
	original := capture.FFmpegBinary
	capture.FFmpegBinary = "voicebank-missing-encoder"
	t.Cleanup(func() { capture.FFmpegBinary = original })

	out := filepath.Join(t.TempDir(), "clip.mp3")
	stdout, err := executeCLI(t, newTestApp(t, "http://127.0.0.1:1"), "record", "--out", out)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "ffmpeg failed")
	assert.Contains(t, stdout, "Recording channels: 1")
	assert.FileExists(t, strings.TrimSuffix(out, ".mp3")+".wav")
}

func TestRecordOpenFailure(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")
	app.openSource = func(capture.Options) (capture.Source, error) {
		return nil, errors.New("no input device")
	}

	_, err := executeCLI(t, app, "record")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input device")
}

func TestRecordRejectsWavOutput(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")
	opened := false
	app.openSource = func(capture.Options) (capture.Source, error) {
		opened = true
		return nil, errors.New("unexpected")
	}

	out := filepath.Join(t.TempDir(), "clip.WAV")
	_, err := executeCLI(t, app, "record", "--out", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be a .wav file")
	assert.False(t, opened)
	assert.NoFileExists(t, out)
}

func TestRecordStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "clip.mp3")
	_, err := executeCLIContext(t, ctx, newTestApp(t, "http://127.0.0.1:1"), "record", "--out", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, strings.TrimSuffix(out, ".mp3")+".wav")
	assert.NoFileExists(t, out)
}
