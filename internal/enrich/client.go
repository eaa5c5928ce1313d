/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenarioconv/internal/scenario"
)

// PromptLimit is the number of leading runes of the script sent to the model.
const PromptLimit = 2000

const instruction = `Analyze the following scenario text and extract this information as JSON:

1. title: the title of the scenario
2. characters: list of characters (name and a short description)
3. scenes: list of scenes (id, title and summary of each)
4. dialogue_format: how dialogue lines are written (e.g. "Name: line")
5. choice_format: how choices are written (e.g. "1. choice text")

Scenario text:
%s...

Reply with JSON only.`

// ErrEmptyResponse is returned when the model answers without content.
var ErrEmptyResponse = errors.New("enrich: empty model response")

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	BaseURL     string
	APIKey      string // bearer token, optional for local gateways
	Model       string
	Temperature float64
	client      *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.1,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Prompt builds the user message for text.
func Prompt(text string) string {
	r := []rune(text)
	if len(r) > PromptLimit {
		r = r[:PromptLimit]
	}
	return fmt.Sprintf(instruction, string(r))
}

// Enrich asks the model for metadata and decodes its JSON answer.
func (c *Client) Enrich(ctx context.Context, text string) (scenario.Metadata, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(text)}},
		Temperature: c.Temperature,
	})
	if err != nil {
		return scenario.Metadata{}, fmt.Errorf("building request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return scenario.Metadata{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return scenario.Metadata{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return scenario.Metadata{}, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return scenario.Metadata{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return scenario.Metadata{}, ErrEmptyResponse
	}
	return DecodeMetadata(cr.Choices[0].Message.Content)
}

// DecodeMetadata parses a model answer, tolerating a surrounding ``` fence.
func DecodeMetadata(content string) (scenario.Metadata, error) {
	var m scenario.Metadata
	if err := json.Unmarshal([]byte(stripFence(content)), &m); err != nil {
		return scenario.Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	return m, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
