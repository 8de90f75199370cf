package classify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/pkg/anthropic"
)

type fakeAnthropicClient struct {
	resp *anthropic.MessageResponse
	err  error
	last anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	return f.resp, f.err
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestLLMArbiter_ParsesVerdict(t *testing.T) {
	client := &fakeAnthropicClient{resp: textResponse("```json\n{\"relevant\": true, \"reason\": \"food supply notice\"}\n```")}
	arb := NewLLMArbiter(client, "claude-haiku-4-5-20251001", 0, 0)

	profile := SectorProfile{Label: "Alimentação", Keywords: []string{"merenda"}}
	ok, err := arb.Arbitrate(context.Background(), item("fornecimento de merenda"), profile, model.RelevanceLLMStandard)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, client.last.Messages[0].Content, "merenda")
}

func TestLLMArbiter_ConservativeZoneTightensPrompt(t *testing.T) {
	client := &fakeAnthropicClient{resp: textResponse(`{"relevant": false, "reason": "no"}`)}
	arb := NewLLMArbiter(client, "claude-haiku-4-5-20251001", 0, 0)

	profile := SectorProfile{Label: "Alimentação"}
	ok, err := arb.Arbitrate(context.Background(), item("obra civil"), profile, model.RelevanceLLMConservative)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, client.last.Messages[0].Content, "explicit evidence")
}

func TestLLMArbiter_APIErrorPropagates(t *testing.T) {
	client := &fakeAnthropicClient{err: eris.New("overloaded")}
	arb := NewLLMArbiter(client, "claude-haiku-4-5-20251001", 0, 0)

	_, err := arb.Arbitrate(context.Background(), item("x"), SectorProfile{}, model.RelevanceLLMStandard)
	assert.Error(t, err)
}

func TestLLMArbiter_MalformedResponse(t *testing.T) {
	client := &fakeAnthropicClient{resp: textResponse("sure, looks relevant to me")}
	arb := NewLLMArbiter(client, "claude-haiku-4-5-20251001", 0, 0)

	_, err := arb.Arbitrate(context.Background(), item("x"), SectorProfile{}, model.RelevanceLLMStandard)
	assert.Error(t, err)
}
