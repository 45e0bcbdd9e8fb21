package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestFields(t *testing.T) {
	buf, err := BuildRequest(5, "workspace/symbol", map[string]string{"query": "#"})
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"id":5`)
	assert.Contains(t, string(buf), `"method":"workspace/symbol"`)
	assert.Contains(t, string(buf), `"jsonrpc":"2.0"`)
}

func TestBuildNotificationHasNoID(t *testing.T) {
	buf, err := BuildNotification("initialized", struct{}{})
	require.NoError(t, err)
	assert.NotContains(t, string(buf), `"id"`)
}

func TestParseResponseOk(t *testing.T) {
	resp, err := ParseResponse[map[string]string]([]byte(`{"jsonrpc":"2.0","id":3,"result":{"a":"b"}}`))
	require.NoError(t, err)
	require.Nil(t, resp.Err)
	require.NotNil(t, resp.ID)
	assert.Equal(t, 3, *resp.ID)
	assert.Equal(t, "b", resp.Result["a"])
}

func TestParseResponseErr(t *testing.T) {
	resp, err := ParseResponse[int]([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32801,"message":"indexing"}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, IndexingErrorCode, resp.Err.Code)
}

func TestParseResponseNullResultIsOk(t *testing.T) {
	resp, err := ParseResponse[*int]([]byte(`{"jsonrpc":"2.0","id":2,"result":null}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Err)
	assert.Nil(t, resp.Result)
}

func TestParseResponseMalformedBothPresent(t *testing.T) {
	_, err := ParseResponse[int]([]byte(`{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"x"}}`))
	assert.Error(t, err)
}

func TestParseResponseNeitherPresentIsOkZero(t *testing.T) {
	// A frame with neither result nor error (here an id-only frame) is
	// not malformed: like a null result, it parses as Ok with the zero
	// value of T.
	resp, err := ParseResponse[int]([]byte(`{"jsonrpc":"2.0","id":9}`))
	require.NoError(t, err)
	assert.Equal(t, 9, *resp.ID)
	assert.Nil(t, resp.Err)
}

func TestPeekID(t *testing.T) {
	id, ok := PeekID([]byte(`{"jsonrpc":"2.0","id":42,"result":{}}`))
	require.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = PeekID([]byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics"}`))
	assert.False(t, ok)
}
