package gemini

// FallbackSummary is returned when the model produced no usable text.
const FallbackSummary = "No summary could be generated at this time."

// Source records which response shape supplied the summary text.
type Source string

const (
	SourceText       Source = "text"
	SourceCandidates Source = "candidates"
	SourceFallback   Source = "fallback"
)

// GenerateResponse is the decoded generateContent reply. Text carries the
// flattened accessor some gateways return; Candidates is the native shape.
// Either, both or neither may be populated.
type GenerateResponse struct {
	Text           string          `json:"text,omitempty"`
	Candidates     []Candidate     `json:"candidates,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// Extract applies the fixed precedence: flat text, then the first part of the
// first candidate, then FallbackSummary. It never fails.
func (r *GenerateResponse) Extract() (string, Source) {
	if r == nil {
		return FallbackSummary, SourceFallback
	}
	if r.Text != "" {
		return r.Text, SourceText
	}
	if len(r.Candidates) > 0 && len(r.Candidates[0].Content.Parts) > 0 {
		if text := r.Candidates[0].Content.Parts[0].Text; text != "" {
			return text, SourceCandidates
		}
	}
	return FallbackSummary, SourceFallback
}

// BlockReason reports why the prompt was refused, if it was.
func (r *GenerateResponse) BlockReason() string {
	if r == nil || r.PromptFeedback == nil {
		return ""
	}
	return r.PromptFeedback.BlockReason
}
