package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterIntervalStaysWithinBounds(t *testing.T) {
	base := 41250 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := jitterInterval(base)
		assert.GreaterOrEqual(t, got, time.Duration(float64(base)*0.2))
		assert.LessOrEqual(t, got, time.Duration(float64(base)*0.8))
	}
}

func TestResumableAndFatalCloseCodes(t *testing.T) {
	assert.True(t, resumableCloseCode(4000))
	assert.True(t, resumableCloseCode(4009))
	assert.False(t, resumableCloseCode(4004))
	assert.True(t, fatalCloseCode(4004))
	assert.False(t, fatalCloseCode(4000))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "CREATE", KindCreate.String())
	assert.Equal(t, "UPDATE", KindUpdate.String())
	assert.Equal(t, "DELETE", KindDelete.String())
	assert.Equal(t, "REACTION_ADD", KindReactionAdd.String())
	assert.Equal(t, "REACTION_REMOVE", KindReactionRemove.String())
}

func TestDecodeMessageFlattensAuthorAndMember(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "1",
		"channel_id": "10",
		"content": "hello <@2>",
		"mentions": [{"id": "2", "username": "bob"}],
		"author": {"id": "2", "username": "bob", "global_name": "Bob G", "avatar": "abc123"},
		"member": {"nick": "Bobby"}
	}`)
	msg, err := decodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "1", msg.ID)
	assert.Equal(t, "10", msg.ChannelID)
	assert.Equal(t, "2", msg.UserID)
	assert.Equal(t, "Bobby", msg.Nick)
	assert.Equal(t, "Bob G", msg.GlobalName)
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, "abc123", msg.AvatarID)
	assert.Equal(t, "Bobby", msg.AuthorName())
}

func TestDecodeMessageWithReferencedMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "5",
		"channel_id": "10",
		"content": "reply",
		"author": {"id": "2", "username": "bob"},
		"referenced_message": {
			"id": "4",
			"mentions": [{"id": "99", "username": "carl"}],
			"author": {"id": "3"}
		}
	}`)
	msg, err := decodeMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.Reference)
	assert.Equal(t, "4", msg.Reference.ID)
	assert.Equal(t, "3", msg.Reference.UserID)
	assert.Len(t, msg.Reference.Mentions, 1)
}

func TestAuthorNameFallbackChain(t *testing.T) {
	assert.Equal(t, "Unknown", Message{}.AuthorName())
	assert.Equal(t, "bob", Message{Username: "bob"}.AuthorName())
	assert.Equal(t, "Bob G", Message{Username: "bob", GlobalName: "Bob G"}.AuthorName())
	assert.Equal(t, "Bobby", Message{Username: "bob", GlobalName: "Bob G", Nick: "Bobby"}.AuthorName())
}

func TestAuthorAvatarURLEmptyWithoutAvatar(t *testing.T) {
	assert.Equal(t, "", Message{UserID: "1"}.AuthorAvatarURL("cdn.example.com", 80))
}

func TestAuthorAvatarURLBuildsCDNLink(t *testing.T) {
	msg := Message{UserID: "1", AvatarID: "abc"}
	assert.Equal(t, "https://cdn.example.com/avatars/1/abc.webp?size=80", msg.AuthorAvatarURL("cdn.example.com", 80))
}

func TestDecodeReactionAddWithMemberResolvesDisplayFields(t *testing.T) {
	raw := json.RawMessage(`{
		"message_id": "5", "channel_id": "10", "guild_id": "100",
		"emoji": {"name": "👍", "id": ""},
		"user_id": "2",
		"member": {"user": {"id": "2", "username": "bob", "global_name": "Bob G", "nick": "Bobby"}}
	}`)
	ev, err := decodeReactionAdd(raw)
	require.NoError(t, err)
	assert.Equal(t, "5", ev.MessageID)
	assert.Equal(t, "10", ev.ChannelID)
	assert.Equal(t, "👍", ev.Emoji)
	assert.Equal(t, "2", ev.UserID)
	assert.Equal(t, "Bobby", ev.Nick)
	assert.Equal(t, "Bob G", ev.GlobalName)
	assert.Equal(t, "bob", ev.Username)
}

func TestDecodeReactionAddWithoutMemberFallsBackToBareUserID(t *testing.T) {
	raw := json.RawMessage(`{
		"message_id": "5", "channel_id": "10",
		"emoji": {"name": "👍"},
		"user_id": "2"
	}`)
	ev, err := decodeReactionAdd(raw)
	require.NoError(t, err)
	assert.Equal(t, "2", ev.UserID)
	assert.Equal(t, "", ev.Username)
}

func TestDecodeReactionRemoveCarriesBareUserID(t *testing.T) {
	raw := json.RawMessage(`{
		"message_id": "5", "channel_id": "10", "guild_id": "100",
		"emoji": {"name": "👍", "id": "999"},
		"user_id": "2"
	}`)
	ev, err := decodeReactionRemove(raw)
	require.NoError(t, err)
	assert.Equal(t, "5", ev.MessageID)
	assert.Equal(t, "999", ev.EmojiID)
	assert.Equal(t, "2", ev.UserID)
	assert.Equal(t, "", ev.Username)
}

func TestDecodeReactionAddManyFansOutPerUserPerEmoji(t *testing.T) {
	raw := json.RawMessage(`{
		"channel_id": "10", "guild_id": "100", "message_id": "5",
		"reactions": [
			{"emoji": {"name": "👍", "id": ""}, "users": ["2", "3"]},
			{"emoji": {"name": "🎉", "id": ""}, "users": ["2"]}
		]
	}`)
	events, err := decodeReactionAddMany(raw)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "👍", events[0].Emoji)
	assert.Equal(t, "2", events[0].UserID)
	assert.Equal(t, "3", events[1].UserID)
	assert.Equal(t, "🎉", events[2].Emoji)
}

func TestEventBufferDropsWhenFull(t *testing.T) {
	s := New("Test", "token", "discord.com", true)
	for i := 0; i < cap(s.events)+5; i++ {
		s.emit(Event{Kind: KindCreate, Message: &Message{ID: "x"}})
	}
	assert.Equal(t, cap(s.events), len(s.events))
}
