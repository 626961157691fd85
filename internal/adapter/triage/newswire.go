package triage

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

const newsInstruction = "You monitor global disaster and emergency news. " +
	"Return a JSON object with a single field \"articles\": an array of up " +
	"to five current disaster headlines, each an object with fields title, " +
	"url and source. Only include real physical emergencies."

// ScanHeadlines asks the oracle for current disaster headlines, optionally
// biased toward a city. Unlike Classify, errors propagate: a failed scan is
// a connector-level outage, not an item-level degradation.
func (c *Client) ScanHeadlines(ctx context.Context, city string) ([]domain.Headline, error) {
	prompt := "List current disaster and emergency headlines."
	if city != "" {
		prompt = fmt.Sprintf("List current disaster and emergency headlines near %s.", city)
	}

	raw, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: newsInstruction},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("news scan: %w", err)
	}

	var payload struct {
		Articles []domain.Headline `json:"articles"`
	}
	if err := json.Unmarshal([]byte(stripWrapping(raw)), &payload); err != nil {
		return nil, fmt.Errorf("news scan: decode headlines: %w", err)
	}
	return payload.Articles, nil
}
