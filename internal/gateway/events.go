package gateway

import (
	"encoding/json"
	"time"
)

// Kind tags which variant of Event is populated.
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
	KindReactionAdd
	KindReactionRemove
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindReactionAdd:
		return "REACTION_ADD"
	case KindReactionRemove:
		return "REACTION_REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event is one dispatch handed to the bridge engine. Exactly one of
// Message/Delete/Reaction is set, matching Kind.
type Event struct {
	Kind     Kind
	Message  *Message
	Delete   *DeleteEvent
	Reaction *ReactionEvent
}

// decodeMessage parses a MESSAGE_CREATE/MESSAGE_UPDATE dispatch payload into
// the flattened Message shape, pulling the author's nick/global_name/avatar
// out of the nested member/author objects.
func decodeMessage(data json.RawMessage) (*Message, error) {
	var raw struct {
		ID          string       `json:"id"`
		ChannelID   string       `json:"channel_id"`
		GuildID     string       `json:"guild_id"`
		Content     string       `json:"content"`
		Mentions    []User       `json:"mentions"`
		Embeds      []Embed      `json:"embeds"`
		Attachments []Attachment `json:"attachments"`
		Stickers    []struct {
			Name       string `json:"name"`
			FormatType int    `json:"format_type"`
		} `json:"sticker_items"`
		Poll *struct {
			Question struct {
				Text string `json:"text"`
			} `json:"question"`
			Answers []struct {
				PollMedia struct {
					Text string `json:"text"`
				} `json:"poll_media"`
			} `json:"answers"`
			Results struct {
				AnswerCounts []struct {
					ID      int  `json:"id"`
					Count   int  `json:"count"`
					MeVoted bool `json:"me_voted"`
				} `json:"answer_counts"`
			} `json:"results"`
			Expiry string `json:"expiry"`
		} `json:"poll"`
		Interaction *struct {
			Name string `json:"name"`
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"interaction"`
		Author struct {
			ID         string `json:"id"`
			Username   string `json:"username"`
			GlobalName string `json:"global_name"`
			Avatar     string `json:"avatar"`
		} `json:"author"`
		Member *Member `json:"member"`
		ReferencedMessage *struct {
			ID       string `json:"id"`
			Mentions []User `json:"mentions"`
			Author   struct {
				ID string `json:"id"`
			} `json:"author"`
		} `json:"referenced_message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:         raw.ID,
		ChannelID:  raw.ChannelID,
		GuildID:    raw.GuildID,
		UserID:     raw.Author.ID,
		Username:   raw.Author.Username,
		GlobalName: raw.Author.GlobalName,
		AvatarID:   raw.Author.Avatar,
		Content:    raw.Content,
		Mentions:   raw.Mentions,
		Embeds:     raw.Embeds,
	}
	if raw.Member != nil {
		msg.Nick = raw.Member.Nick
	}
	// Attachments render the same way a bare embed does (no main_url), so
	// they're folded into the same Embeds list the formatter walks.
	for _, a := range raw.Attachments {
		msg.Embeds = append(msg.Embeds, Embed{Type: a.ContentType, URL: a.URL})
	}
	for _, st := range raw.Stickers {
		msg.Stickers = append(msg.Stickers, Sticker{Name: st.Name, FormatType: st.FormatType})
	}
	if raw.Interaction != nil {
		msg.Interaction = &Interaction{Username: raw.Interaction.User.Username, Command: raw.Interaction.Name}
	}
	if raw.Poll != nil {
		poll := &Poll{Question: raw.Poll.Question.Text}
		if expiry, err := time.Parse(time.RFC3339, raw.Poll.Expiry); err == nil {
			poll.Expires = expiry
		}
		counts := make(map[int]struct {
			count   int
			meVoted bool
		}, len(raw.Poll.Results.AnswerCounts))
		for _, c := range raw.Poll.Results.AnswerCounts {
			counts[c.ID] = struct {
				count   int
				meVoted bool
			}{c.Count, c.MeVoted}
		}
		for i, ans := range raw.Poll.Answers {
			c := counts[i+1]
			poll.Options = append(poll.Options, PollOption{
				Answer:  ans.PollMedia.Text,
				Count:   c.count,
				MeVoted: c.meVoted,
			})
		}
		msg.Poll = poll
	}
	if raw.ReferencedMessage != nil {
		msg.Reference = &MessageReference{
			ID:       raw.ReferencedMessage.ID,
			UserID:   raw.ReferencedMessage.Author.ID,
			Mentions: raw.ReferencedMessage.Mentions,
		}
	}
	return msg, nil
}

// ReactionEvent is one user's reaction add/remove on a message. Username,
// GlobalName, and Nick are only ever populated on an add (Discord includes
// the reactor's member object there); a remove carries just the user id.
type ReactionEvent struct {
	MessageID  string
	ChannelID  string
	GuildID    string
	Emoji      string
	EmojiID    string
	UserID     string
	Username   string
	GlobalName string
	Nick       string
}

type rawReactionEmoji struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// decodeReactionAdd parses a MESSAGE_REACTION_ADD dispatch. Spacebar
// sometimes omits the nested member/user object entirely, falling back to
// the bare user_id field.
func decodeReactionAdd(data json.RawMessage) (*ReactionEvent, error) {
	var raw struct {
		MessageID string            `json:"message_id"`
		ChannelID string            `json:"channel_id"`
		GuildID   string            `json:"guild_id"`
		UserID    string            `json:"user_id"`
		Emoji     rawReactionEmoji  `json:"emoji"`
		Member    *struct {
			User struct {
				ID         string `json:"id"`
				Username   string `json:"username"`
				GlobalName string `json:"global_name"`
				Nick       string `json:"nick"`
			} `json:"user"`
		} `json:"member"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	ev := &ReactionEvent{
		MessageID: raw.MessageID,
		ChannelID: raw.ChannelID,
		GuildID:   raw.GuildID,
		Emoji:     raw.Emoji.Name,
		EmojiID:   raw.Emoji.ID,
		UserID:    raw.UserID,
	}
	if raw.Member != nil && raw.Member.User.ID != "" {
		ev.UserID = raw.Member.User.ID
		ev.Username = raw.Member.User.Username
		ev.GlobalName = raw.Member.User.GlobalName
		ev.Nick = raw.Member.User.Nick
	}
	return ev, nil
}

// decodeReactionRemove parses a MESSAGE_REACTION_REMOVE dispatch, which
// carries only the bare user id, never a resolved display name.
func decodeReactionRemove(data json.RawMessage) (*ReactionEvent, error) {
	var raw struct {
		MessageID string           `json:"message_id"`
		ChannelID string           `json:"channel_id"`
		GuildID   string           `json:"guild_id"`
		UserID    string           `json:"user_id"`
		Emoji     rawReactionEmoji `json:"emoji"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &ReactionEvent{
		MessageID: raw.MessageID,
		ChannelID: raw.ChannelID,
		GuildID:   raw.GuildID,
		Emoji:     raw.Emoji.Name,
		EmojiID:   raw.Emoji.ID,
		UserID:    raw.UserID,
	}, nil
}

// decodeReactionAddMany parses a MESSAGE_REACTION_ADD_MANY dispatch (sent on
// initial reaction sync) into one ReactionEvent per emoji/user pair, none of
// which carry a resolved display name.
func decodeReactionAddMany(data json.RawMessage) ([]*ReactionEvent, error) {
	var raw struct {
		ChannelID string `json:"channel_id"`
		GuildID   string `json:"guild_id"`
		MessageID string `json:"message_id"`
		Reactions []struct {
			Emoji rawReactionEmoji `json:"emoji"`
			Users []string         `json:"users"`
		} `json:"reactions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var events []*ReactionEvent
	for _, r := range raw.Reactions {
		for _, userID := range r.Users {
			events = append(events, &ReactionEvent{
				MessageID: raw.MessageID,
				ChannelID: raw.ChannelID,
				GuildID:   raw.GuildID,
				Emoji:     r.Emoji.Name,
				EmojiID:   r.Emoji.ID,
				UserID:    userID,
			})
		}
	}
	return events, nil
}
