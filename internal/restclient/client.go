// Package restclient talks to a Discord-compatible REST API (Discord itself,
// or a Spacebar instance) to fetch and send channel messages. It deliberately
// has no rate-limit bucket: each call is a single request on a short-timeout
// client, matching the bridge's one-request-at-a-time usage pattern.
package restclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sparklost/spacebar-bridge/internal/logging"
)

// Client fetches and sends messages against one backend's REST API.
type Client struct {
	name       string
	host       string
	cdnHost    string
	token      string
	httpClient *http.Client
}

// New returns a Client for the given endpoint. host is the bare API host
// (e.g. "discord.com"), not a full URL.
func New(name, host, cdnHost, token string) *Client {
	return &Client{
		name:    name,
		host:    host,
		cdnHost: cdnHost,
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Nonce generates a Discord snowflake-shaped nonce from the current time,
// used to correlate a sent message with its eventual MESSAGE_CREATE echo.
func Nonce(now time.Time) string {
	const discordEpochMs = 1420070400000
	ms := now.UnixMilli() - discordEpochMs
	return strconv.FormatInt(ms<<22, 10)
}

// MessageReference points a sent message at the message it replies to.
type MessageReference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// AllowedMentions restricts which mentions in a sent message actually ping,
// used to suppress the reply ping while still mirroring the reference.
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	RepliedUser *bool    `json:"replied_user,omitempty"`
}

// SendMessageOptions configures an outgoing message beyond its plain content.
type SendMessageOptions struct {
	ReplyID        string
	ReplyChannelID string
	ReplyGuildID   string
	ReplyPing      bool
	Embeds         []map[string]any
}

type sentMessage struct {
	ID string `json:"id"`
}

// GetMessages fetches up to num messages from a channel, optionally bounded
// by before/after/around message ids (pass "" to omit any of them).
func (c *Client) GetMessages(channelID string, num int, before, after, around string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(num))
	if before != "" {
		q.Set("before", before)
	}
	if after != "" {
		q.Set("after", after)
	}
	if around != "" {
		q.Set("around", around)
	}
	path := fmt.Sprintf("/api/v9/channels/%s/messages?%s", channelID, q.Encode())

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.WithField("endpoint", c.name).Errorf("failed to fetch messages: status %d", resp.StatusCode)
		return nil, fmt.Errorf("restclient: fetch messages: status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("restclient: decode messages: %w", err)
	}
	return raw, nil
}

// SendMessage posts a new message to a channel and returns its id.
func (c *Client) SendMessage(channelID, content string, opts SendMessageOptions) (string, error) {
	body := map[string]any{
		"content": content,
		"tts":     false,
		"flags":   0,
		"nonce":   Nonce(time.Now()),
	}
	if opts.ReplyID != "" && opts.ReplyChannelID != "" {
		ref := MessageReference{MessageID: opts.ReplyID, ChannelID: opts.ReplyChannelID}
		if opts.ReplyGuildID != "" {
			ref.GuildID = opts.ReplyGuildID
		}
		body["message_reference"] = ref
		if !opts.ReplyPing {
			no := false
			body["allowed_mentions"] = AllowedMentions{
				Parse:       []string{"users", "roles", "everyone"},
				RepliedUser: &no,
			}
		}
	}
	if len(opts.Embeds) > 0 {
		body["embeds"] = opts.Embeds
	}

	resp, err := c.do(http.MethodPost, fmt.Sprintf("/api/v9/channels/%s/messages", channelID), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.WithField("endpoint", c.name).Errorf("failed to send message: status %d", resp.StatusCode)
		return "", fmt.Errorf("restclient: send message: status %d", resp.StatusCode)
	}

	var sent sentMessage
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", fmt.Errorf("restclient: decode sent message: %w", err)
	}
	return sent.ID, nil
}

// SendUpdateMessage edits an existing message's content and embeds.
func (c *Client) SendUpdateMessage(channelID, messageID, content string, embeds []map[string]any) error {
	body := map[string]any{"content": content}
	if len(embeds) > 0 {
		body["embeds"] = embeds
	}

	path := fmt.Sprintf("/api/v9/channels/%s/messages/%s", channelID, messageID)
	resp, err := c.do(http.MethodPatch, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.WithField("endpoint", c.name).Errorf("failed to edit message: status %d", resp.StatusCode)
		return fmt.Errorf("restclient: edit message: status %d", resp.StatusCode)
	}
	return nil
}

// SendDeleteMessage deletes a message from a channel.
func (c *Client) SendDeleteMessage(channelID, messageID string) error {
	path := fmt.Sprintf("/api/v9/channels/%s/messages/%s", channelID, messageID)
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		logging.WithField("endpoint", c.name).Errorf("failed to delete message: status %d", resp.StatusCode)
		return fmt.Errorf("restclient: delete message: status %d", resp.StatusCode)
	}
	return nil
}

// SendReaction adds the bot's own reaction to a message.
func (c *Client) SendReaction(channelID, messageID, reaction string) error {
	path := fmt.Sprintf("/api/v9/channels/%s/messages/%s/reactions/%s/@me?location=Message%%20Reaction%%20Picker&type=0",
		channelID, messageID, url.PathEscape(reaction))
	resp, err := c.do(http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		logging.WithField("endpoint", c.name).Errorf("failed to send reaction %q: status %d", reaction, resp.StatusCode)
		return fmt.Errorf("restclient: send reaction: status %d", resp.StatusCode)
	}
	return nil
}

// RemoveReaction removes the bot's own reaction from a message.
func (c *Client) RemoveReaction(channelID, messageID, reaction string) error {
	path := fmt.Sprintf("/api/v9/channels/%s/messages/%s/reactions/%s/@me?location=Message%%20Inline%%20Button&burst=false",
		channelID, messageID, url.PathEscape(reaction))
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		logging.WithField("endpoint", c.name).Errorf("failed to remove reaction %q: status %d", reaction, resp.StatusCode)
		return fmt.Errorf("restclient: remove reaction: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("restclient: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, "https://"+c.host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("restclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restclient: %s %s: %w", method, path, err)
	}
	return resp, nil
}
