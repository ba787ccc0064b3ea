package restclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceIsMonotonicAndNumeric(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Millisecond)
	n1, n2 := Nonce(t1), Nonce(t2)
	assert.Less(t, n1, n2)
	for _, n := range []string{n1, n2} {
		for _, r := range n {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	c := New("Test", "", "", "tok")
	c.host = srv.Listener.Addr().String()
	c.httpClient = srv.Client()
	return c
}

func TestGetMessagesBuildsQueryString(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		assert.Equal(t, "Bot tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1"}]`))
	})

	msgs, err := c.GetMessages("10", 50, "5", "", "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, gotPath, "limit=50")
	assert.Contains(t, gotPath, "before=5")
	assert.NotContains(t, gotPath, "after=")
	assert.NotContains(t, gotPath, "around=")
}

func TestGetMessagesReturnsErrorOnNon200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.GetMessages("10", 50, "", "", "")
	assert.Error(t, err)
}

func TestSendMessageReturnsID(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	})

	id, err := c.SendMessage("10", "hello", SendMessageOptions{})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "hello", body["content"])
	assert.NotEmpty(t, body["nonce"])
	assert.NotContains(t, body, "message_reference")
}

func TestSendMessageWithSuppressedReplyPingSetsAllowedMentions(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1"}`))
	})

	_, err := c.SendMessage("10", "reply text", SendMessageOptions{
		ReplyID:        "1",
		ReplyChannelID: "10",
		ReplyPing:      false,
	})
	require.NoError(t, err)
	require.Contains(t, body, "message_reference")
	require.Contains(t, body, "allowed_mentions")
	mentions := body["allowed_mentions"].(map[string]any)
	assert.Equal(t, false, mentions["replied_user"])
}

func TestSendUpdateMessageSendsPatch(t *testing.T) {
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	})
	err := c.SendUpdateMessage("10", "1", "new content", nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
}

func TestSendDeleteMessageExpects204(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.SendDeleteMessage("10", "1"))
}

func TestSendDeleteMessageReturnsErrorOnUnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	assert.Error(t, c.SendDeleteMessage("10", "1"))
}

func TestSendReactionEncodesUnicodeEmoji(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.SendReaction("10", "1", "👍"))
	assert.Contains(t, gotPath, "/reactions/👍/@me")
}

func TestRemoveReactionUsesDelete(t *testing.T) {
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.RemoveReaction("10", "1", "👍"))
	assert.Equal(t, http.MethodDelete, method)
}
