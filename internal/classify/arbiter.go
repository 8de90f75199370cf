package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/pkg/anthropic"
)

const arbiterSystemPrompt = `You judge whether Brazilian public procurement notices are relevant to a supplier's sector. You receive the sector definition and one notice description. Respond with a valid JSON object: {"relevant": true|false, "reason": "<one short sentence>"}`

const arbiterUserPrompt = `Sector: %s
Sector keywords: %s
Strictness: %s

Notice:
%s`

// LLMArbiter resolves ambiguous density zones with a single short
// model call per item. The conservative and zero-match zones instruct
// the model to require explicit evidence.
type LLMArbiter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func NewLLMArbiter(client anthropic.Client, modelID string, maxTokens int64, timeout time.Duration) *LLMArbiter {
	if maxTokens <= 0 {
		maxTokens = 128
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMArbiter{client: client, model: modelID, maxTokens: maxTokens, timeout: timeout}
}

func (a *LLMArbiter) Arbitrate(ctx context.Context, item model.ProcurementItem, profile SectorProfile, zone model.RelevanceSource) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	strictness := "accept when the notice plausibly fits the sector"
	if zone != model.RelevanceLLMStandard {
		strictness = "accept only with explicit evidence the notice fits the sector"
	}

	text := item.Object
	if len(text) > 2000 {
		text = text[:2000]
	}
	prompt := fmt.Sprintf(arbiterUserPrompt,
		profile.Label,
		strings.Join(profile.Keywords, ", "),
		strictness,
		text,
	)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(arbiterSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return false, eris.Wrap(err, "classify: arbiter call")
	}
	resp.Usage.LogCost(a.model, "classify")

	var verdict struct {
		Relevant bool   `json:"relevant"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &verdict); err != nil {
		return false, eris.Wrap(err, "classify: arbiter response")
	}
	return verdict.Relevant, nil
}

// cleanJSON attempts to extract a JSON object from text that may
// contain markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
