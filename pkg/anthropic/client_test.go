package anthropic

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "hello "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "hello world", resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestBlockConstructors(t *testing.T) {
	b := TextBlock("read this vale")
	assert.Equal(t, "text", b.Type)
	assert.Equal(t, "read this vale", b.Text)

	img := ImageBlock("image/jpeg", "aGVsbG8=")
	assert.Equal(t, "image", img.Type)
	assert.Equal(t, "image/jpeg", img.MediaType)
	assert.Equal(t, "aGVsbG8=", img.Data)
}

func TestRetryAfterOf(t *testing.T) {
	assert.Zero(t, retryAfterOf(nil))

	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, retryAfterOf(resp))

	resp.Header.Set("retry-after", "12")
	assert.Equal(t, 12*time.Second, retryAfterOf(resp))

	resp.Header.Set("retry-after", "garbage")
	assert.Zero(t, retryAfterOf(resp))
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}
