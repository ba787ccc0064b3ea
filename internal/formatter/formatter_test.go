package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplaceCustomEmoji(t *testing.T) {
	assert.Equal(t, "x:foo:y", ReplaceCustomEmoji("x<:foo:123>y"))
	assert.Equal(t, "x:foo:y", ReplaceCustomEmoji("x<a:foo:123>y"))
}

func TestReplaceMentions(t *testing.T) {
	assert.Equal(t, "@ada", ReplaceMentions("<@42>", []User{{ID: "42", Username: "ada"}}))
	assert.Equal(t, "<@99>", ReplaceMentions("<@99>", []User{{ID: "42", Username: "ada"}}))
}

func TestReplaceRolesFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "@unknown_role", ReplaceRoles("<@&7>", nil))
	assert.Equal(t, "@admins", ReplaceRoles("<@&7>", []Role{{ID: "7", Name: "admins"}}))
}

func TestReplaceChannelsFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "@unknown_channel", ReplaceChannels("<#7>", nil))
	assert.Equal(t, "#general", ReplaceChannels("<#7>", []Channel{{ID: "7", Name: "general"}}))
}

func TestReplaceDiscordURL(t *testing.T) {
	assert.Equal(t, "<#2>>MSG", ReplaceDiscordURL("https://discord.com/channels/1/2/3"))
	assert.Equal(t, "<#2>", ReplaceDiscordURL("https://discord.com/channels/1/2"))
}

func TestBuildEmptyContentReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", Build(Message{}, nil, nil))
}

func TestBuildPollZeroVotes(t *testing.T) {
	future := time.Now().Add(time.Hour)
	poll := Poll{
		Question: "Q?",
		Options: []PollOption{
			{Answer: "A", Count: 0},
			{Answer: "B", Count: 0},
		},
		Expires: future,
	}
	out := Build(Message{Poll: &poll}, nil, nil)
	assert.Contains(t, out, "(0 votes, 0%)")
}

func TestBuildPollScenario(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	out := FormatPoll(Poll{
		Question: "Q?",
		Options: []PollOption{
			{Answer: "A", Count: 1, MeVoted: true},
			{Answer: "B", Count: 3, MeVoted: false},
		},
		Expires: expires,
	}, time.Now())

	assert.Contains(t, out, "*Poll (ongoing):*")
	assert.Contains(t, out, "Q?")
	assert.Contains(t, out, "* A (1 votes, 25%)")
	assert.Contains(t, out, "- B (3 votes, 75%)")
	assert.Contains(t, out, "Ends <t:")
}

func TestBuildPollEnded(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	out := FormatPoll(Poll{Question: "Q?", Expires: expired}, time.Now())
	assert.Contains(t, out, "*Poll (ended):*")
	assert.Contains(t, out, "Ended <t:")
}

func TestBuildInteractionPrefix(t *testing.T) {
	out := Build(Message{
		Content:     "result",
		Interaction: &Interaction{Username: "ada", Command: "roll"},
	}, nil, nil)
	assert.Equal(t, "╭──⤙ ada used [roll]\nresult", out)
}

func TestBuildAttachmentEmbed(t *testing.T) {
	out := Build(Message{
		Embeds: []Embed{{URL: "https://cdn.example/x.png", Type: "image/png", HasMainURL: false}},
	}, nil, nil)
	assert.Equal(t, "[(image attachment)](https://cdn.example/x.png)", out)
}

func TestBuildRichEmbed(t *testing.T) {
	out := Build(Message{
		Embeds: []Embed{{URL: "https://example.com/post", Type: "rich", HasMainURL: true}},
	}, nil, nil)
	assert.Equal(t, "(rich embed):\nhttps://example.com/post", out)
}

func TestBuildNonRichEmbed(t *testing.T) {
	out := Build(Message{
		Embeds: []Embed{{URL: "https://example.com/video", Type: "video/mp4", HasMainURL: true}},
	}, nil, nil)
	assert.Equal(t, "[(video embed)](https://example.com/video)", out)
}

func TestBuildHiddenEmbedSkipped(t *testing.T) {
	out := Build(Message{
		Embeds: []Embed{{URL: "https://example.com/x", Hidden: true, HasMainURL: true, Type: "rich"}},
	}, nil, nil)
	assert.Equal(t, "", out)
}

func TestBuildEmbedAlreadyInContentSkipped(t *testing.T) {
	out := Build(Message{
		Content: "see https://example.com/x",
		Embeds:  []Embed{{URL: "https://example.com/x", HasMainURL: true, Type: "rich"}},
	}, nil, nil)
	assert.Equal(t, "see https://example.com/x", out)
}

func TestBuildStickers(t *testing.T) {
	cases := []struct {
		formatType int
		want       string
	}{
		{1, "[(png sticker)](s)"},
		{2, "[(apng sticker)](s)"},
		{3, "(lottie sticker: s)"},
		{4, "[(gif sticker)](s)"},
	}
	for _, c := range cases {
		out := Build(Message{Stickers: []Sticker{{Name: "s", FormatType: c.formatType}}}, nil, nil)
		assert.Equal(t, c.want, out)
	}
}
