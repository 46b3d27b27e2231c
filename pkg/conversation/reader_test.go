package conversation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `{"id":"t1","role":"user","content":"help me analyze the nginx logs\nthere are a lot of 502s"}
{"id":"t2","role":"assistant","content":"Let me look.","tool_calls":[{"id":"c1","name":"bash","input":{"command":"grep 502 access.log"}}]}
{"id":"t3","role":"tool","tool_results":[{"call_id":"c1","content":"permission denied","is_error":true}]}
{"id":"t4","role":"assistant","content":"Retrying with sudo.","tool_calls":[{"id":"c2","name":"bash","input":{"command":"sudo grep 502 access.log"}}]}
{"id":"t5","role":"tool","tool_results":[{"call_id":"c2","content":"1432 matches"}]}
{"id":"t6","role":"assistant","content":"Found 1432 bad gateway responses."}
`

func TestRead(t *testing.T) {
	turns, err := Read(context.Background(), strings.NewReader(sampleTranscript))
	require.NoError(t, err)
	require.Len(t, turns, 6)

	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "t1", turns[0].ID)
	assert.Len(t, turns[1].ToolCalls, 1)
	assert.Equal(t, "bash", turns[1].ToolCalls[0].Name)
	assert.True(t, turns[2].ToolResults[0].IsError)
	assert.Equal(t, "grep 502 access.log", turns[1].ToolCalls[0].Input["command"])
}

func TestReadSkipsMalformedLines(t *testing.T) {
	input := `{"role":"user","content":"first"}
this is not json at all
{"role":"assistant","content":"second"}
`
	turns, err := Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
}

func TestReadUnknownRolePreserved(t *testing.T) {
	input := `{"role":"overseer","content":"novel record variant"}
`
	turns, err := Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleUnknown, turns[0].Role)
	assert.Equal(t, "novel record variant", turns[0].Content)
}

func TestReadAssignsMissingIDs(t *testing.T) {
	input := `{"role":"user","content":"no id"}
`
	turns, err := Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.NotEmpty(t, turns[0].ID)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleTranscript), 0o644))

	turns, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, turns, 6)

	_, err = ReadFile(context.Background(), "/does/not/exist.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/does/not/exist.jsonl")
}

func TestSummarize(t *testing.T) {
	turns, err := Read(context.Background(), strings.NewReader(sampleTranscript))
	require.NoError(t, err)

	s := Summarize(turns)
	assert.Equal(t, 6, s.Turns)
	assert.Equal(t, 1, s.UserTurns)
	assert.Equal(t, 3, s.AssistantTurns)
	assert.Equal(t, 2, s.ToolCalls)
	assert.Equal(t, map[string]int{"bash": 2}, s.ToolUsage)
	assert.Equal(t, 1, s.ErrorResults)
	assert.Equal(t, 1, s.RecoveredErrors, "a clean retry after a failure counts as a recovery")
	assert.Equal(t, "help me analyze the nginx logs", s.Topic)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Turns)
	assert.Empty(t, s.Topic)
}

func TestTopicFromTruncates(t *testing.T) {
	long := strings.Repeat("workflow ", 20)
	topic := topicFrom(long)
	assert.LessOrEqual(t, len(topic), 80)
	assert.True(t, strings.HasPrefix(topic, "workflow"))
}
