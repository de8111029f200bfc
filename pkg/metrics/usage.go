package metrics

// TokenUsage reports the provider tokens one chat answer consumed. Cached
// and fallback answers carry no usage.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether the provider returned no usage data.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}
