package dto

type VoiceRequest struct {
	SpokenText string `json:"spoken_text"`
	SessionID  string `json:"session_id,omitempty"`
}

type CommandResponse struct {
	SpokenResponse *string          `json:"spoken_response"`
	SessionID      string           `json:"session_id,omitempty"`
	Decision       *Decision        `json:"decision,omitempty"`
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
}

// ToolCallResponse mirrors a single function call proposed by the model, without executing it.
type ToolCallResponse struct {
	Name *string        `json:"name"`
	Args map[string]any `json:"args"`
	Text *string        `json:"text"`
}

type ToolCallRecord struct {
	Name     string         `json:"name"`
	Args     map[string]any `json:"args,omitempty"`
	Result   string         `json:"result,omitempty"`
	Executed bool           `json:"executed"`
}

type TtsRequest struct {
	Text string `json:"text"`
}

type SttResponse struct {
	Text string `json:"text"`
}

type VoiceFlowRequest struct {
	SessionID   string `json:"session_id"`
	Transcript  string `json:"transcript,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

type VoiceFlowResponse struct {
	Transcript     string    `json:"transcript"`
	SpokenResponse *string   `json:"spoken_response"`
	SessionID      string    `json:"session_id,omitempty"`
	Decision       *Decision `json:"decision,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
