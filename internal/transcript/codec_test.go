package transcript

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userLine      = `{"parentUuid":null,"isSidechain":false,"userType":"external","cwd":"/home/dev/app","sessionId":"s1","version":"1.0.30","uuid":"u1","timestamp":"2025-06-01T10:00:00.000Z","type":"user","message":{"role":"user","content":"fix the build"}}`
	userListLine  = `{"parentUuid":"a1","isSidechain":false,"userType":"external","cwd":"/home/dev/app","sessionId":"s1","version":"1.0.30","uuid":"u2","timestamp":"2025-06-01T10:00:05.000Z","type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`
	assistantLine = `{"parentUuid":"u1","isSidechain":false,"userType":"external","cwd":"/home/dev/app","sessionId":"s1","version":"1.0.30","uuid":"a1","timestamp":"2025-06-01T10:00:02.000Z","type":"assistant","requestId":"req_1","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4","content":[{"type":"text","text":"On it."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"make"}}],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":20,"cache_creation_input_tokens":30,"cache_read_input_tokens":40}}}`
	summaryLine   = `{"type":"summary","summary":"Fix the build","leafUuid":"a1"}`
)

func TestDecode_Kinds(t *testing.T) {
	u, err := Decode([]byte(userLine))
	require.NoError(t, err)
	user, ok := u.(*UserEntry)
	require.True(t, ok, "got %T", u)
	assert.Equal(t, "fix the build", user.Message.Content.PlainText())
	assert.False(t, user.Message.Content.IsList())

	a, err := Decode([]byte(assistantLine))
	require.NoError(t, err)
	asst, ok := a.(*AssistantEntry)
	require.True(t, ok, "got %T", a)
	assert.Equal(t, "req_1", asst.RequestID)
	assert.Equal(t, "msg_1", asst.Message.ID)
	require.NotNil(t, asst.Message.Usage)
	assert.EqualValues(t, 40, asst.Message.Usage.CacheReadInputTokens)
	assert.Equal(t, "On it.", TextOf(asst.Message.Content))

	s, err := Decode([]byte(summaryLine))
	require.NoError(t, err)
	sum, ok := s.(*SummaryEntry)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, "a1", sum.LeafUUID)
}

func TestDecode_UnknownKind(t *testing.T) {
	for _, line := range []string{
		`{"type":"system","content":"hook ran"}`,
		`{"message":"no type"}`,
		`[]`,
	} {
		_, err := Decode([]byte(line))
		assert.True(t, errors.Is(err, ErrUnknownKind), "Decode(%s) err = %v", line, err)
	}
}

func TestDecode_WrongFieldType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"user","sessionId":42}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownKind))
}

func TestEncodeDecode_PreservesRecord(t *testing.T) {
	for _, line := range []string{userLine, userListLine, assistantLine, summaryLine} {
		e, err := Decode([]byte(line))
		require.NoError(t, err)

		raw, err := Encode(e)
		require.NoError(t, err)

		again, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, e, again)
	}
}

func TestEncode_SetsType(t *testing.T) {
	raw, err := Encode(&SummaryEntry{Summary: "x", LeafUUID: "u"})
	require.NoError(t, err)

	var head struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(raw, &head))
	assert.Equal(t, "summary", head.Type)
}

func TestContent_ListStaysList(t *testing.T) {
	var c Content
	require.NoError(t, json.Unmarshal([]byte(`[]`), &c))
	assert.True(t, c.IsList())

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestAccessors(t *testing.T) {
	u, err := Decode([]byte(userLine))
	require.NoError(t, err)

	ts, ok := Timestamp(u)
	assert.True(t, ok)
	assert.Equal(t, "2025-06-01T10:00:00.000Z", ts)

	sid, ok := SessionID(u)
	assert.True(t, ok)
	assert.Equal(t, "s1", sid)

	cwd, ok := Cwd(u)
	assert.True(t, ok)
	assert.Equal(t, "/home/dev/app", cwd)

	s := &SummaryEntry{Summary: "x"}
	_, ok = Timestamp(s)
	assert.False(t, ok)
	_, ok = UUID(s)
	assert.False(t, ok)
}
