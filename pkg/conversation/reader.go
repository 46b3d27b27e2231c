// Package conversation parses agent transcripts into structured turns.
// Transcripts are newline-delimited JSON records, one turn per line, each
// carrying a role, optional tool invocations and their results. The reader
// is tolerant: malformed lines and unknown variants are skipped or carried
// as unknown rather than failing the whole transcript.
package conversation

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
)

// Role identifies who produced a turn. Unrecognized roles map to
// RoleUnknown and are preserved rather than dropped.
type Role string

// Turn roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

func normalizeRole(s string) Role {
	switch Role(strings.ToLower(s)) {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return Role(strings.ToLower(s))
	default:
		return RoleUnknown
	}
}

// ToolCall is a tool invocation requested within a turn
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// ToolResult is the outcome of a tool invocation
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Turn is one structured transcript record
type Turn struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"timestamp,omitempty"`
}

// Summary aggregates a transcript for skill-worthiness decisions
type Summary struct {
	Turns           int            `json:"turns"`
	UserTurns       int            `json:"user_turns"`
	AssistantTurns  int            `json:"assistant_turns"`
	ToolCalls       int            `json:"tool_calls"`
	ToolUsage       map[string]int `json:"tool_usage,omitempty"`
	ErrorResults    int            `json:"error_results"`
	RecoveredErrors int            `json:"recovered_errors"`
	Topic           string         `json:"topic"`
}

// ReadFile parses a transcript file into turns
func ReadFile(ctx context.Context, path string) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open transcript %s", path)
	}
	defer f.Close()
	return Read(ctx, f)
}

// Read parses newline-delimited turn records. Lines that are not valid
// JSON are skipped with a warning; the rest of the transcript is still
// usable.
func Read(ctx context.Context, r io.Reader) ([]Turn, error) {
	log := logger.G(ctx)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var turns []Turn
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw rawTurn
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			log.WithError(err).WithField("line", lineNo).Warn("skipping malformed transcript line")
			continue
		}

		turn := Turn{
			ID:          raw.ID,
			Role:        normalizeRole(raw.Role),
			Content:     raw.Content,
			ToolCalls:   raw.ToolCalls,
			ToolResults: raw.ToolResults,
			Timestamp:   raw.Timestamp,
		}
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read transcript")
	}
	return turns, nil
}

// rawTurn is the wire shape; unknown fields are ignored by json.Unmarshal
// so extended record variants degrade gracefully
type rawTurn struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls"`
	ToolResults []ToolResult `json:"tool_results"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Summarize aggregates turns into the projection the enhancer consumes
func Summarize(turns []Turn) Summary {
	s := Summary{
		Turns:     len(turns),
		ToolUsage: map[string]int{},
	}

	// call id -> tool name, for attributing results to tools
	callTools := map[string]string{}
	erroredTools := map[string]bool{}

	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			s.UserTurns++
			if s.Topic == "" {
				s.Topic = topicFrom(turn.Content)
			}
		case RoleAssistant:
			s.AssistantTurns++
		}

		for _, call := range turn.ToolCalls {
			s.ToolCalls++
			s.ToolUsage[call.Name]++
			callTools[call.ID] = call.Name
		}
		for _, result := range turn.ToolResults {
			tool := callTools[result.CallID]
			if result.IsError {
				s.ErrorResults++
				if tool != "" {
					erroredTools[tool] = true
				}
				continue
			}
			if tool != "" && erroredTools[tool] {
				// a later clean result after a failure counts as a recovery
				s.RecoveredErrors++
				delete(erroredTools, tool)
			}
		}
	}
	return s
}

// topicFrom reduces free-form content to a rough one-line topic label
func topicFrom(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	const maxTopic = 80
	if len(line) > maxTopic {
		line = strings.TrimSpace(line[:maxTopic])
	}
	return line
}
