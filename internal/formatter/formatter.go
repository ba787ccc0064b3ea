// Package formatter rewrites a normalized message's content into plain text
// that renders meaningfully on the opposite backend: custom emoji, user/role/
// channel mentions, cross-posted channel URLs, polls, embeds and stickers all
// use tokens or fields that only make sense on the backend that produced them.
package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reCustomEmoji  = regexp.MustCompile(`<a?:(.*?):(\d*?)>`)
	reMention      = regexp.MustCompile(`<@(\d*?)>`)
	reRole         = regexp.MustCompile(`<@&(\d*?)>`)
	reChannel      = regexp.MustCompile(`<#(\d*?)>`)
	reDiscordURL   = regexp.MustCompile(`https://discord\.com/channels/(\d*)/(\d*)(?:/(\d*))?`)
)

// User is a mentionable account, as carried in a message's mentions list.
type User struct {
	ID       string
	Username string
}

// Role is an entry from the guild's role table, used to resolve role mentions.
type Role struct {
	ID   string
	Name string
}

// Channel is an entry from the guild's channel table, used to resolve channel mentions.
type Channel struct {
	ID   string
	Name string
}

// Embed is a rendered or attachment embed attached to a message.
type Embed struct {
	URL     string
	Type    string
	Hidden  bool
	// HasMainURL distinguishes a rendered embed (has main_url) from a bare
	// attachment embed (no main_url field at all).
	HasMainURL bool
}

// Sticker is a sticker attached to a message.
type Sticker struct {
	Name       string
	FormatType int
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	Answer  string
	Count   int
	MeVoted bool
}

// Poll is a message poll payload.
type Poll struct {
	Question string
	Options  []PollOption
	Expires  time.Time
}

// Interaction describes the slash command that produced a message, if any.
type Interaction struct {
	Username string
	Command  string
}

// Message is the subset of a normalized message the formatter needs.
type Message struct {
	Content     string
	Mentions    []User
	Embeds      []Embed
	Stickers    []Sticker
	Poll        *Poll
	Interaction *Interaction
}

// ReplaceCustomEmoji rewrites "<:name:id>" / "<a:name:id>" into ":name:".
func ReplaceCustomEmoji(text string) string {
	return reCustomEmoji.ReplaceAllString(text, ":$1:")
}

// ReplaceMentions rewrites "<@id>" into "@username" using the message's own
// mentions list. Unresolved ids are left unchanged.
func ReplaceMentions(text string, mentions []User) string {
	return replaceMatches(reMention, text, func(id string) (string, bool) {
		for _, u := range mentions {
			if u.ID == id {
				return "@" + u.Username, true
			}
		}
		return "", false
	})
}

// ReplaceRoles rewrites "<@&id>" into "@role_name". Unresolved ids become
// "@unknown_role", unlike ReplaceMentions, which leaves unresolved ids unchanged.
func ReplaceRoles(text string, roles []Role) string {
	return replaceMatchesWithFallback(reRole, text, "@unknown_role", func(id string) (string, bool) {
		for _, r := range roles {
			if r.ID == id {
				return "@" + r.Name, true
			}
		}
		return "", false
	})
}

// ReplaceChannels rewrites "<#id>" into "#channel_name". Unresolved ids
// become "@unknown_channel".
func ReplaceChannels(text string, channels []Channel) string {
	return replaceMatchesWithFallback(reChannel, text, "@unknown_channel", func(id string) (string, bool) {
		for _, c := range channels {
			if c.ID == id {
				return "#" + c.Name, true
			}
		}
		return "", false
	})
}

// ReplaceDiscordURL rewrites a channel/message permalink
// "https://discord.com/channels/G/C[/M]" into "<#C>", appending ">MSG" when a
// message id was present in the URL.
func ReplaceDiscordURL(text string) string {
	return reDiscordURL.ReplaceAllStringFunc(text, func(m string) string {
		groups := reDiscordURL.FindStringSubmatch(m)
		// groups[1] is guild id, groups[2] is channel id, groups[3] the
		// optional message id, per /channels/<guild>/<channel>[/<message>].
		channelID := groups[2]
		if groups[3] != "" {
			return fmt.Sprintf("<#%s>>MSG", channelID)
		}
		return fmt.Sprintf("<#%s>", channelID)
	})
}

func replaceMatches(re *regexp.Regexp, text string, resolve func(id string) (string, bool)) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		idStart, idEnd := loc[2], loc[3]
		b.WriteString(text[last:start])
		id := text[idStart:idEnd]
		if resolved, ok := resolve(id); ok {
			b.WriteString(resolved)
		} else {
			b.WriteString(text[start:end])
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func replaceMatchesWithFallback(re *regexp.Regexp, text, fallback string, resolve func(id string) (string, bool)) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		idStart, idEnd := loc[2], loc[3]
		b.WriteString(text[last:start])
		id := text[idStart:idEnd]
		if resolved, ok := resolve(id); ok {
			b.WriteString(resolved)
		} else {
			b.WriteString(fallback)
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// cleanType strips everything after the first "/" in an embed MIME-ish type,
// e.g. "image/png" -> "image".
func cleanType(embedType string) string {
	if i := strings.IndexByte(embedType, '/'); i >= 0 {
		return embedType[:i]
	}
	return embedType
}

// FormatPoll renders a poll as a block-quoted summary.
func FormatPoll(poll Poll, now time.Time) string {
	status, ends := "ongoing", "Ends"
	if poll.Expires.Before(now) {
		status, ends = "ended", "Ended"
	}

	lines := []string{
		fmt.Sprintf("*Poll (%s):*", status),
		poll.Question,
	}

	total := 0
	for _, opt := range poll.Options {
		total += opt.Count
	}
	for _, opt := range poll.Options {
		pct := 0
		if total > 0 {
			pct = int(float64(opt.Count)/float64(total)*100 + 0.5)
		}
		marker := "-"
		if opt.MeVoted {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("  %s %s (%d votes, %d%%)", marker, opt.Answer, opt.Count, pct))
	}
	lines = append(lines, fmt.Sprintf("%s <t:%d:R>", ends, poll.Expires.Unix()))

	var b strings.Builder
	for _, line := range lines {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Build converts a normalized message into backend-neutral plain text, using
// roles and channels tables to resolve role/channel mentions. Returns "" if
// there is nothing to render; the caller substitutes the placeholder text.
func Build(msg Message, roles []Role, channels []Channel) string {
	var content string

	if msg.Interaction != nil {
		content = fmt.Sprintf("╭──⤙ %s used [%s]", msg.Interaction.Username, msg.Interaction.Command)
	}

	body := msg.Content
	if msg.Poll != nil {
		body = FormatPoll(*msg.Poll, time.Now())
	}

	if body != "" {
		if content != "" {
			content += "\n"
		}
		body = ReplaceCustomEmoji(body)
		body = ReplaceMentions(body, msg.Mentions)
		body = ReplaceRoles(body, roles)
		body = ReplaceDiscordURL(body)
		body = ReplaceChannels(body, channels)
		content += body
	}

	for _, embed := range msg.Embeds {
		if embed.URL == "" || embed.Hidden || strings.Contains(content, embed.URL) {
			continue
		}
		if content != "" {
			content += "\n"
		}
		switch {
		case !embed.HasMainURL:
			content += fmt.Sprintf("[(%s attachment)](%s)", cleanType(embed.Type), embed.URL)
		case embed.Type == "rich":
			content += fmt.Sprintf("(rich embed):\n%s", embed.URL)
		default:
			content += fmt.Sprintf("[(%s embed)](%s)", cleanType(embed.Type), embed.URL)
		}
	}

	for _, sticker := range msg.Stickers {
		if content != "" {
			content += "\n"
		}
		switch sticker.FormatType {
		case 1:
			content += fmt.Sprintf("[(png sticker)](%s)", sticker.Name)
		case 2:
			content += fmt.Sprintf("[(apng sticker)](%s)", sticker.Name)
		case 3:
			content += fmt.Sprintf("(lottie sticker: %s)", sticker.Name)
		default:
			content += fmt.Sprintf("[(gif sticker)](%s)", sticker.Name)
		}
	}

	return content
}

// UnknownContentPlaceholder is substituted by callers when Build returns "".
const UnknownContentPlaceholder = "*Unknown message content*"
