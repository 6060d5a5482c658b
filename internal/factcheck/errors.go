package factcheck

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	ErrInvalidInput          ErrorKind = "InvalidInput"
	ErrEmptyContent          ErrorKind = "EmptyContent"
	ErrFetchForbidden        ErrorKind = "FetchForbidden"
	ErrFetchNotFound         ErrorKind = "FetchNotFound"
	ErrFetchRateLimited      ErrorKind = "FetchRateLimited"
	ErrFetchTimeout          ErrorKind = "FetchTimeout"
	ErrFetchFailed           ErrorKind = "FetchFailed"
	ErrUpstreamUnavailable   ErrorKind = "UpstreamUnavailable"
	ErrUpstreamRejected      ErrorKind = "UpstreamRejected"
	ErrUpstreamProtocolError ErrorKind = "UpstreamProtocolError"
	ErrNoJSONFound           ErrorKind = "NoJsonFound"
	ErrMalformedJSON         ErrorKind = "MalformedJson"
	ErrIncompleteVerdict     ErrorKind = "IncompleteVerdict"
	ErrInternal              ErrorKind = "Internal"
)

// Class groups kinds by who is at fault, which decides the boundary status.
type Class string

const (
	ClassClient      Class = "client"
	ClassRateLimited Class = "rate_limited"
	ClassUpstream    Class = "upstream"
	ClassInternal    Class = "internal"
)

const processingFailedMessage = "Failed to process response from the analysis service. Please try again."

var kindMessages = map[ErrorKind]string{
	ErrInvalidInput:          "Invalid request.",
	ErrEmptyContent:          "No content could be extracted. Please copy and paste the text directly.",
	ErrFetchForbidden:        "This website is protected against scraping. Please copy and paste the article text directly.",
	ErrFetchNotFound:         "The webpage could not be found. Please check the URL and try again.",
	ErrFetchRateLimited:      "Too many requests. Please try again later.",
	ErrFetchTimeout:          "The request timed out. Please try again or use a different URL.",
	ErrFetchFailed:           "Failed to fetch webpage content. For paywalled articles, please copy and paste the text directly.",
	ErrUpstreamUnavailable:   "The analysis service is unavailable. Please try again later.",
	ErrUpstreamRejected:      "The analysis service rejected the request.",
	ErrUpstreamProtocolError: "Invalid response from the analysis service.",
	ErrNoJSONFound:           processingFailedMessage,
	ErrMalformedJSON:         processingFailedMessage,
	ErrIncompleteVerdict:     processingFailedMessage,
	ErrInternal:              "Internal error.",
}

// Error is a pipeline failure classified at the point of detection.
// Raw holds the unmodified reasoning-service text for diagnostics and is
// never part of the user message.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Raw     string
	Err     error
}

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kindMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so errors.Is(err, &Error{Kind: ErrFetchTimeout}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// UserMessage is safe to show to end users. Recovery failures never expose
// the reasoning-service text.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case ErrNoJSONFound, ErrMalformedJSON, ErrIncompleteVerdict, ErrInternal:
		return kindMessages[e.Kind]
	case ErrFetchForbidden, ErrFetchNotFound, ErrFetchRateLimited, ErrFetchTimeout, ErrFetchFailed:
		return kindMessages[e.Kind]
	}
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return kindMessages[ErrInternal]
}

func (e *Error) Class() Class {
	switch e.Kind {
	case ErrInvalidInput, ErrEmptyContent, ErrFetchForbidden, ErrFetchNotFound:
		return ClassClient
	case ErrFetchRateLimited:
		return ClassRateLimited
	case ErrFetchTimeout, ErrFetchFailed, ErrUpstreamUnavailable, ErrUpstreamRejected, ErrUpstreamProtocolError:
		return ClassUpstream
	default:
		return ClassInternal
	}
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrInvalidInput, ErrEmptyContent, ErrFetchForbidden:
		return http.StatusBadRequest
	case ErrFetchNotFound:
		return http.StatusNotFound
	case ErrFetchRateLimited:
		return http.StatusTooManyRequests
	case ErrFetchTimeout:
		return http.StatusGatewayTimeout
	case ErrFetchFailed, ErrUpstreamUnavailable, ErrUpstreamRejected, ErrUpstreamProtocolError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the taxonomy kind of err, or ErrInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrInternal
}

// AsError returns err as *Error, classifying unknown errors as Internal.
func AsError(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return NewError(ErrInternal, "", err)
}
