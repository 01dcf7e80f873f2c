package tracker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

func req(id string) protocol.PendingRequest {
	raw, _ := json.Marshal(id)
	return protocol.PendingRequest{RequestID: raw, Action: "read", IsContextUpdate: false}
}

func TestResolveWithoutPending(t *testing.T) {
	tr := New(nil)

	resp, ok := tr.Resolve("<html/>")
	assert.False(t, ok)
	assert.Nil(t, resp)
}

func TestResolveConsumesOnce(t *testing.T) {
	tr := New(nil)
	tr.Open(req("r1"))

	resp, ok := tr.Resolve("<html/>")
	require.True(t, ok)
	assert.Equal(t, `"r1"`, string(resp.Payload.RequestID))
	assert.Equal(t, "<html/>", resp.Payload.Result)
	assert.Equal(t, protocol.TypeDOMDataResponse, resp.Type)

	_, pending := tr.Pending()
	assert.False(t, pending)

	_, ok = tr.Resolve("<html>again</html>")
	assert.False(t, ok)
}

func TestOpenReplacesPending(t *testing.T) {
	tr := New(nil)
	tr.Open(req("r1"))
	tr.Open(req("r2"))

	got, ok := tr.Pending()
	require.True(t, ok)
	assert.Equal(t, "r2", got.ID())

	resp, ok := tr.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, `"r2"`, string(resp.Payload.RequestID))

	_, ok = tr.Resolve("y")
	assert.False(t, ok)
}
