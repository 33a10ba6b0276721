package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const streamDoneMarker = "[DONE]"

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		Delta   chatCompletionMessage `json:"delta"`
		Text    string                `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
}

// content returns the first non-empty content field. Deltas are returned
// untrimmed since whitespace is significant mid-stream.
func (r chatCompletionResponse) content() string {
	for _, choice := range r.Choices {
		for _, value := range []string{choice.Delta.Content, choice.Message.Content, choice.Text} {
			if value != "" {
				return value
			}
		}
	}
	return ""
}

func isEventStream(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream")
}

// readEventStream parses server-sent events, one JSON chunk per data line.
// Comment lines (": keep-alive") and non-data fields are ignored.
func readEventStream(body io.Reader, deliver func(string)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == streamDoneMarker {
			return nil
		}
		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("llm stream: decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("llm stream: api error: %s", strings.TrimSpace(chunk.Error.Message))
		}
		delta := chunk.content()
		deliver(delta)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("llm stream: read: %w", err)
	}
	return nil
}

func readSingleCompletion(body io.Reader, deliver func(string)) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("llm stream: read body: %w", err)
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return fmt.Errorf("llm stream: decode response: %w", err)
	}
	if completion.Error != nil {
		return fmt.Errorf("llm stream: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	content := completion.content()
	deliver(content)
	return nil
}
