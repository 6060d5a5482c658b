// Package factcheck holds the request, verdict and error types shared by every
// pipeline stage.
package factcheck

type Kind string

const (
	KindText  Kind = "text"
	KindURL   Kind = "url"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindURL, KindImage:
		return true
	}
	return false
}

// ContentRequest is one caller submission. It is owned by a single pipeline run.
type ContentRequest struct {
	Kind    Kind   `json:"type"`
	Payload string `json:"content"`
}

// ImagePart is an inline image forwarded to the reasoning service as-is.
type ImagePart struct {
	MediaType string
	Data      string
}

// NormalizedContent is the analyzable form of a request. Text is set for text
// and url kinds, Image for the image kind.
type NormalizedContent struct {
	Kind  Kind
	Text  string
	Image *ImagePart
}

type FalseClaim struct {
	Claim      string `json:"claim"`
	Correction string `json:"correction"`
}

// Source is a citation. Generated candidates use the same shape, so
// structural equality covers all three fields.
type Source struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Relevance string `json:"relevance"`
}

type Color string

const (
	ColorHigh   Color = "high"
	ColorMedium Color = "medium"
	ColorLow    Color = "low"
)

type ReliabilityIndicator struct {
	Score int   `json:"score"`
	Color Color `json:"color"`
}

type Verdict struct {
	Transcription          string               `json:"transcription,omitempty"`
	ReliabilityScore       int                  `json:"reliability_score"`
	ReliabilityExplanation string               `json:"reliability_explanation,omitempty"`
	IsFactual              bool                 `json:"is_factual"`
	Analysis               string               `json:"analysis,omitempty"`
	FalseClaims            []FalseClaim         `json:"false_claims"`
	Sources                []Source             `json:"sources"`
	KeyClaims              []string             `json:"key_claims,omitempty"`
	ReliabilityIndicator   ReliabilityIndicator `json:"reliability_indicator"`
}

// Public returns the boundary form of the verdict: key claims are internal.
func (v Verdict) Public() Verdict {
	out := v
	out.KeyClaims = nil
	if out.FalseClaims == nil {
		out.FalseClaims = []FalseClaim{}
	}
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	return out
}

// ColorForScore bands a 1-10 score: >=8 high, >=5 medium, otherwise low.
func ColorForScore(score int) Color {
	switch {
	case score >= 8:
		return ColorHigh
	case score >= 5:
		return ColorMedium
	default:
		return ColorLow
	}
}

func IndicatorFor(score int) ReliabilityIndicator {
	return ReliabilityIndicator{Score: score, Color: ColorForScore(score)}
}
