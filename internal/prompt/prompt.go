// Package prompt builds the reasoning request for a piece of normalized content.
package prompt

import (
	"strings"

	"factcheck/backend/internal/factcheck"
)

const (
	DefaultMaxTokens = 4096

	textSystemPrompt  = "You are a professional fact-checker. Focus on finding and verifying the most significant claims against reliable sources. Return ONLY valid JSON with no additional text."
	imageSystemPrompt = "You are a forensic image analyst and fact-checker. Check the image for signs of manipulation or misleading context. Transcribe its text and the claims it makes, then verify the most significant claims against reliable sources. Return ONLY valid JSON with no additional text."
)

const verdictSchema = `{
  "transcription": "content summary",
  "reliability_score": 1-10,
  "reliability_explanation": "score justification",
  "is_factual": true/false,
  "analysis": "detailed analysis",
  "key_claims": ["list of up to 3 main claims to verify"],
  "false_claims": [{"claim": "false claim", "correction": "truth"}],
  "sources": [{"title": "source", "url": "url", "relevance": "specific claim this source verifies"}]
}`

type Models struct {
	Text   string
	Vision string
}

// Request is provider-neutral: each reasoning client maps it onto its own
// wire format.
type Request struct {
	Model     string
	System    string
	UserText  string
	Image     *factcheck.ImagePart
	MaxTokens int
}

// Build is pure: the same content and models always yield the same request.
func Build(content factcheck.NormalizedContent, models Models) Request {
	req := Request{
		Model:     models.Text,
		System:    textSystemPrompt,
		MaxTokens: DefaultMaxTokens,
	}
	if content.Kind == factcheck.KindImage {
		req.Model = models.Vision
		req.System = imageSystemPrompt
		req.Image = content.Image
		req.UserText = buildInstruction("the attached image")
		return req
	}
	req.UserText = buildInstruction(content.Text)
	return req
}

func buildInstruction(subject string) string {
	var b strings.Builder
	b.WriteString("Analyze this content for factual accuracy. Extract key claims and search for verification.\n\n")
	b.WriteString("Content to analyze: ")
	b.WriteString(subject)
	b.WriteString("\n\n")
	b.WriteString("First, identify up to 3 main claims or statements that need verification. Then, for each claim:\n")
	b.WriteString("1. Search reliable sources for verification\n")
	b.WriteString("2. Compare the claim against verified facts\n")
	b.WriteString("3. Provide direct links to fact-checking articles or primary sources (max 3 sources)\n\n")
	b.WriteString("Return ONLY a JSON object in this exact format, with no additional text or explanation:\n")
	b.WriteString(verdictSchema)
	return b.String()
}
