package factcheck

import (
	"encoding/base64"
	"net/url"
	"strings"
)

const defaultImageMediaType = "image/jpeg"

// Validate checks the request invariants. maxImageBytes bounds the decoded
// size of image payloads.
func (r ContentRequest) Validate(maxImageBytes int) error {
	if strings.TrimSpace(string(r.Kind)) == "" || strings.TrimSpace(r.Payload) == "" {
		return Errorf(ErrInvalidInput, "Missing required fields: type and content")
	}
	if !r.Kind.Valid() {
		return Errorf(ErrInvalidInput, "Unsupported content type %q: expected text, url or image", r.Kind)
	}

	switch r.Kind {
	case KindURL:
		if _, err := ParseAbsoluteURL(r.Payload); err != nil {
			return err
		}
	case KindImage:
		if _, err := ParseImage(r.Payload, maxImageBytes); err != nil {
			return err
		}
	}
	return nil
}

// ParseAbsoluteURL accepts only absolute http(s) URLs with a host.
func ParseAbsoluteURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, NewError(ErrInvalidInput, "Invalid URL", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, Errorf(ErrInvalidInput, "URL must be absolute")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, Errorf(ErrInvalidInput, "URL scheme must be http or https")
	}
	return parsed, nil
}

// ParseImage splits an optional data URI prefix from a base64 image payload
// and enforces the decoded byte budget.
func ParseImage(raw string, maxBytes int) (ImagePart, error) {
	payload := strings.TrimSpace(raw)
	mediaType := defaultImageMediaType

	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok {
			return ImagePart{}, Errorf(ErrInvalidInput, "Malformed image data URI")
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return ImagePart{}, Errorf(ErrInvalidInput, "Image data URI must be base64 encoded")
		}
		meta = strings.TrimSuffix(meta, ";base64")
		if meta != "" {
			if !strings.HasPrefix(meta, "image/") {
				return ImagePart{}, Errorf(ErrInvalidInput, "Data URI is not an image")
			}
			mediaType = meta
		}
		payload = data
	}

	if payload == "" {
		return ImagePart{}, Errorf(ErrInvalidInput, "Image payload is empty")
	}
	decodedLen := base64.StdEncoding.DecodedLen(len(payload))
	if maxBytes > 0 && decodedLen > maxBytes+2 {
		return ImagePart{}, Errorf(ErrInvalidInput, "Image is too large. Please use an image under %d KB.", maxBytes/1024)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImagePart{}, NewError(ErrInvalidInput, "Image payload is not valid base64", err)
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return ImagePart{}, Errorf(ErrInvalidInput, "Image is too large. Please use an image under %d KB.", maxBytes/1024)
	}
	return ImagePart{MediaType: mediaType, Data: payload}, nil
}
