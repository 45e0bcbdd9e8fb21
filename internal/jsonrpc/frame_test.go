package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := []any{
		map[string]any{"hello": "world"},
		map[string]any{"big": strings.Repeat("x", 70_000)}, // larger than one OS read
		[]int{1, 2, 3},
		map[string]any{"nested": map[string]any{"a": 1, "b": []string{"c", "d"}}},
	}

	for _, p := range payloads {
		j, err := json.Marshal(p)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, j))

		got, err := ReadFrame(bufio.NewReader(&buf))
		require.NoError(t, err)
		assert.JSONEq(t, string(j), string(got))
	}
}

func TestReadFrameMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"a":1}`)))
	require.NoError(t, WriteFrame(&buf, []byte(`{"b":2}`)))

	rd := bufio.NewReader(&buf)
	first, err := ReadFrame(rd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))

	second, err := ReadFrame(rd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(second))
}

func TestReadFrameToleratesContentType(t *testing.T) {
	raw := "Content-Length: 11\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{\"a\":\"bcd\"}\n"
	rd := bufio.NewReader(strings.NewReader(raw))
	got, err := ReadFrame(rd)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"bcd"}`, string(got))
}

func TestReadFrameBadHeader(t *testing.T) {
	rd := bufio.NewReader(strings.NewReader(strings.Repeat("garbage", 2000)))
	_, err := ReadFrame(rd)
	assert.Error(t, err)
}
