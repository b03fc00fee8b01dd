package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is a normalized classification: the dominant label plus the full
// label->score map. Scores are not required to sum to 1.
type Result struct {
	TopLabel string
	TopScore float64
	Scores   map[string]float64
}

// Client calls the HuggingFace inference API for a single model.
type Client struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(model, apiKey string) *Client {
	return &Client{
		BaseURL: "https://api-inference.huggingface.co/models",
		Model:   model,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify scores text against the model. It never fails the request:
// on any transport or parsing error the keyword heuristic takes over.
func (c *Client) Classify(ctx context.Context, text string) Result {
	res, err := c.callAPI(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("Classifier API unavailable, using heuristic fallback")
		return HeuristicScores(text)
	}
	return res
}

func (c *Client) callAPI(ctx context.Context, text string) (Result, error) {
	jsonBody, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("api error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return parseScores(respBody)
}

// parseScores accepts either [{label,score}...] or the same list nested one
// level deep ([[{label,score}...]]), which some models return.
func parseScores(body []byte) (Result, error) {
	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		var nested [][]labelScore
		if err2 := json.Unmarshal(body, &nested); err2 != nil || len(nested) == 0 {
			return Result{}, fmt.Errorf("unexpected response shape: %s", string(body))
		}
		flat = nested[0]
	}
	if len(flat) == 0 {
		return Result{}, fmt.Errorf("empty score list")
	}

	scores := make(map[string]float64, len(flat))
	top := Result{Scores: scores, TopScore: -1}
	for _, ls := range flat {
		label := strings.ToLower(ls.Label)
		scores[label] = ls.Score
		if ls.Score > top.TopScore {
			top.TopLabel = label
			top.TopScore = ls.Score
		}
	}
	return top, nil
}
