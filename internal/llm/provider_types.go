package llm

// Request shape we send to upstream (Ollama /api/generate).
type providerGenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// Ollama reports failures as {"error": "..."} both as a whole non-2xx body
// and as an in-stream NDJSON record.
type providerErrorResponse struct {
	Error string `json:"error"`
}

type providerVersionResponse struct {
	Version string `json:"version"`
}
