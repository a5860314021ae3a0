package models

// InferenceRequest is the fixed-shape body sent to the generation endpoint. Stream is always false:
// the widget waits for the whole text and animates it locally.
type InferenceRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// InferenceResponse is the part of the endpoint's reply the widget reads.
type InferenceResponse struct {
	Response string `json:"response"`
}

// ChatRequest is the body accepted by the JSON chat API.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned by the JSON chat API.
type ChatResponse struct {
	Response string `json:"response"`
}
