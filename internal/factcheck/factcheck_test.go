package factcheck

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorForScoreBands(t *testing.T) {
	want := map[int]Color{
		1: ColorLow, 2: ColorLow, 3: ColorLow, 4: ColorLow,
		5: ColorMedium, 6: ColorMedium, 7: ColorMedium,
		8: ColorHigh, 9: ColorHigh, 10: ColorHigh,
	}
	for score, color := range want {
		assert.Equal(t, color, ColorForScore(score), "score %d", score)
		assert.Equal(t, ReliabilityIndicator{Score: score, Color: color}, IndicatorFor(score))
	}
}

func TestValidateRequest(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))

	tests := []struct {
		name    string
		req     ContentRequest
		wantErr bool
	}{
		{name: "text", req: ContentRequest{Kind: KindText, Payload: "The sky is blue."}},
		{name: "url", req: ContentRequest{Kind: KindURL, Payload: "https://example.com/a"}},
		{name: "image raw base64", req: ContentRequest{Kind: KindImage, Payload: img}},
		{name: "image data uri", req: ContentRequest{Kind: KindImage, Payload: "data:image/png;base64," + img}},
		{name: "missing kind", req: ContentRequest{Payload: "x"}, wantErr: true},
		{name: "blank payload", req: ContentRequest{Kind: KindText, Payload: "   "}, wantErr: true},
		{name: "unknown kind", req: ContentRequest{Kind: "video", Payload: "x"}, wantErr: true},
		{name: "relative url", req: ContentRequest{Kind: KindURL, Payload: "/news/1"}, wantErr: true},
		{name: "ftp url", req: ContentRequest{Kind: KindURL, Payload: "ftp://example.com/a"}, wantErr: true},
		{name: "bad base64", req: ContentRequest{Kind: KindImage, Payload: "!!!"}, wantErr: true},
		{name: "non-image data uri", req: ContentRequest{Kind: KindImage, Payload: "data:text/plain;base64," + img}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate(1024)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ErrInvalidInput, KindOf(err))
		})
	}
}

func TestParseImageEnforcesBudget(t *testing.T) {
	big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
	_, err := ParseImage(big, 1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	part, err := ParseImage("data:image/webp;base64,"+base64.StdEncoding.EncodeToString([]byte("ok")), 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", part.MediaType)
}

func TestErrorUserMessageHidesRawResponse(t *testing.T) {
	err := &Error{Kind: ErrMalformedJSON, Message: "invalid character 'x'", Raw: "model said {x}"}
	assert.NotContains(t, err.UserMessage(), "model said")
	assert.Equal(t, ClassInternal, err.Class())
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestFetchForbiddenMentionsManualEntry(t *testing.T) {
	err := NewError(ErrFetchForbidden, "", errors.New("status 403"))
	assert.True(t, strings.Contains(strings.ToLower(err.UserMessage()), "paste"))
	assert.Equal(t, ClassClient, err.Class())
}

func TestUpstreamMessageSurfaces(t *testing.T) {
	err := Errorf(ErrUpstreamRejected, "model not found")
	assert.Equal(t, "model not found", err.UserMessage())
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
}

func TestKindOfUnwrapsChains(t *testing.T) {
	base := Errorf(ErrFetchTimeout, "slow")
	wrapped := fmt.Errorf("normalize: %w", base)

	assert.Equal(t, ErrFetchTimeout, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, &Error{Kind: ErrFetchTimeout}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: ErrFetchNotFound}))
	assert.Equal(t, ErrInternal, KindOf(errors.New("plain")))
	assert.Equal(t, ErrInternal, AsError(errors.New("plain")).Kind)
}

func TestPublicDropsKeyClaims(t *testing.T) {
	v := Verdict{ReliabilityScore: 6, KeyClaims: []string{"a"}}
	pub := v.Public()
	assert.Nil(t, pub.KeyClaims)
	assert.NotNil(t, pub.Sources)
	assert.NotNil(t, pub.FalseClaims)
	assert.Equal(t, []string{"a"}, v.KeyClaims)
}
