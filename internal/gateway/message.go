package gateway

import (
	"strconv"
	"time"
)

// User is the subset of a Discord/Spacebar user object the bridge needs.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// Member carries the guild-specific nickname that overrides author display.
type Member struct {
	Nick string `json:"nick"`
}

// Role is a guild role, used to resolve "<@&id>" mentions.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is a guild channel, used to resolve "<#id>" mentions.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// EmbedAuthor is the author block of a rich embed.
type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

// Embed is a rendered or attachment embed attached to a message.
type Embed struct {
	Type    string       `json:"type"`
	URL     string       `json:"url,omitempty"`
	Author  *EmbedAuthor `json:"author,omitempty"`
	// MainURL is set for embeds Discord rendered from a link ("rich" embeds
	// and friends); its absence distinguishes a bare attachment embed.
	MainURL string `json:"main_url,omitempty"`
}

// Sticker is a sticker attached to a message.
type Sticker struct {
	Name       string `json:"name"`
	FormatType int    `json:"format_type"`
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	Answer  string `json:"answer"`
	Count   int    `json:"count"`
	MeVoted bool   `json:"me_voted"`
}

// Poll is a message poll payload.
type Poll struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	Expires  time.Time    `json:"expires"`
}

// Interaction describes the slash command that produced a message, if any.
type Interaction struct {
	Username string `json:"username"`
	Command  string `json:"command"`
}

// MessageReference points from a reply back to the message it replies to.
type MessageReference struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// Mentions is the referenced message's own mention list, used only to
	// decide whether a reply should ping the bridge's own account.
	Mentions []User `json:"mentions"`
}

// Message is the flattened, backend-neutral shape the bridge engine and
// formatter operate on. It is assembled from a raw gateway dispatch payload
// by decodeMessage.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`

	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Nick       string `json:"nick"`
	AvatarID   string `json:"avatar_id"`

	Content     string             `json:"content"`
	Mentions    []User             `json:"mentions"`
	Embeds      []Embed            `json:"embeds"`
	Stickers    []Sticker          `json:"stickers"`
	Poll        *Poll              `json:"poll,omitempty"`
	Interaction *Interaction       `json:"interaction,omitempty"`
	Reference   *MessageReference  `json:"referenced_message,omitempty"`
}

// AuthorName resolves the display name fallback chain: nick, then
// global_name, then username, then "Unknown".
func (m Message) AuthorName() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.GlobalName != "" {
		return m.GlobalName
	}
	if m.Username != "" {
		return m.Username
	}
	return "Unknown"
}

// AuthorAvatarURL builds the CDN avatar URL for this message's author, or ""
// if the author has no avatar set.
func (m Message) AuthorAvatarURL(cdnHost string, size int) string {
	if m.AvatarID == "" {
		return ""
	}
	return "https://" + cdnHost + "/avatars/" + m.UserID + "/" + m.AvatarID + ".webp?size=" + strconv.Itoa(size)
}

// DeleteEvent is the payload of a MESSAGE_DELETE dispatch.
type DeleteEvent struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}
