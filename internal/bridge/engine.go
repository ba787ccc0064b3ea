// Package bridge relays message events between two gateway sessions,
// rewriting content with the formatter and recording source/target message
// id mappings in a pair store so edits, deletes, and replies can be
// resolved back to the right mirrored message.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/sparklost/spacebar-bridge/internal/config"
	"github.com/sparklost/spacebar-bridge/internal/formatter"
	"github.com/sparklost/spacebar-bridge/internal/gateway"
	"github.com/sparklost/spacebar-bridge/internal/logging"
	"github.com/sparklost/spacebar-bridge/internal/pairstore"
	"github.com/sparklost/spacebar-bridge/internal/restclient"
	"github.com/sirupsen/logrus"
)

// targetClient is the subset of *restclient.Client a relay direction sends
// through. Accepting the interface rather than the concrete type lets tests
// substitute a fake target without standing up a real HTTP server.
type targetClient interface {
	SendMessage(channelID, content string, opts restclient.SendMessageOptions) (string, error)
	SendUpdateMessage(channelID, messageID, content string, embeds []map[string]any) error
	SendDeleteMessage(channelID, messageID string) error
}

// eventSource is the subset of *gateway.Session a relay direction consumes.
// Accepting the interface lets tests drive the loop with a plain channel
// instead of a live gateway connection.
type eventSource interface {
	Events() <-chan gateway.Event
	MyID() string
	Err() error
}

// relayRecorder is the subset of *health.Server a relay direction reports
// its outcomes to. Accepting the interface avoids an import cycle (health
// depends on nothing in this package) and lets tests run without a server.
type relayRecorder interface {
	RecordRelay(direction, kind string)
	RecordError(direction string)
}

// Side bundles everything one direction of the bridge needs to consume
// events from its source gateway and relay them to its target REST client.
type Side struct {
	Name       string
	Gateway    eventSource
	Target     targetClient
	Store      pairstore.Store
	OtherStore pairstore.Store // opposite direction's store, for cross-side reply lookups
	CDNHost    string
	GuildID    string

	// Channels maps this side's source channel id to the target channel id.
	Channels map[string]string

	// Metrics, if set, receives a RecordRelay/RecordError call for every
	// relay attempt this side makes. Nil is valid and simply records nothing.
	Metrics relayRecorder
}

func (s Side) recordRelay(kind string) {
	if s.Metrics != nil {
		s.Metrics.RecordRelay(s.Name, kind)
	}
}

func (s Side) recordError() {
	if s.Metrics != nil {
		s.Metrics.RecordError(s.Name)
	}
}

// Engine runs the two relay directions that make up one bridge process.
type Engine struct {
	a, b Side
}

// New returns an Engine wiring side A (e.g. Discord) to side B (e.g.
// Spacebar) and vice versa.
func New(a, b Side) *Engine {
	return &Engine{a: a, b: b}
}

// Run blocks relaying events from both directions until ctx is cancelled or
// either gateway reports a fatal error.
func (e *Engine) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- e.relayLoop(ctx, e.a) }()
	go func() { errCh <- e.relayLoop(ctx, e.b) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// relayLoop consumes one side's gateway event buffer and relays each event
// to the opposite side, until ctx is cancelled or the source gateway fails.
func (e *Engine) relayLoop(ctx context.Context, side Side) error {
	log := logging.WithField("bridge", side.Name)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-side.Gateway.Events():
			e.handle(side, ev, log)
		case <-ticker.C:
			if err := side.Gateway.Err(); err != nil {
				return fmt.Errorf("bridge: %s gateway: %w", side.Name, err)
			}
		}
	}
}

func (e *Engine) handle(side Side, ev gateway.Event, log *logrus.Entry) {
	switch ev.Kind {
	case gateway.KindCreate:
		e.relayCreate(side, ev.Message, log)
	case gateway.KindUpdate:
		e.relayUpdate(side, ev.Message, log)
	case gateway.KindDelete:
		e.relayDelete(side, ev.Delete, log)
	case gateway.KindReactionAdd, gateway.KindReactionRemove:
		// Reactions reach the buffer but mirroring them across endpoints is
		// out of scope; nothing to relay.
	}
}

func (e *Engine) targetChannel(side Side, sourceChannel string) (string, bool) {
	target, ok := side.Channels[sourceChannel]
	return target, ok
}

// relayCreate mirrors a MESSAGE_CREATE, resolving any reply reference and
// recording the resulting source->target mapping.
func (e *Engine) relayCreate(side Side, msg *gateway.Message, log *logrus.Entry) {
	if msg == nil || msg.UserID == side.Gateway.MyID() {
		return
	}
	targetChannel, ok := e.targetChannel(side, msg.ChannelID)
	if !ok {
		return
	}
	pairID := config.PairID(msg.ChannelID, targetChannel)

	replyTarget, replyPing := e.resolveReply(side, msg, targetChannel)

	content := formatter.Build(toFormatterMessage(msg), nil, nil)
	if content == "" {
		content = formatter.UnknownContentPlaceholder
	}
	embeds := buildEmbeds(msg, side.CDNHost, content)

	targetID, err := side.Target.SendMessage(targetChannel, "", restclient.SendMessageOptions{
		ReplyID:        replyTarget,
		ReplyChannelID: targetChannel,
		ReplyGuildID:   side.GuildID,
		ReplyPing:      replyPing,
		Embeds:         embeds,
	})
	if err != nil {
		side.recordError()
		log.Errorf("relay create %s->%s: %v", msg.ChannelID, targetChannel, err)
		return
	}
	side.recordRelay("create")
	if err := side.Store.AddPair(context.Background(), pairID, msg.ID, targetID); err != nil {
		log.Errorf("record pair %s: %v", pairID, err)
	}
}

// relayUpdate mirrors a MESSAGE_UPDATE onto the previously mirrored message,
// doing nothing if the source message was never successfully relayed.
func (e *Engine) relayUpdate(side Side, msg *gateway.Message, log *logrus.Entry) {
	if msg == nil || msg.UserID == side.Gateway.MyID() {
		return
	}
	targetChannel, ok := e.targetChannel(side, msg.ChannelID)
	if !ok {
		return
	}
	pairID := config.PairID(msg.ChannelID, targetChannel)

	targetID, err := side.Store.GetTarget(context.Background(), pairID, msg.ID)
	if err != nil {
		log.Errorf("lookup pair %s: %v", pairID, err)
		return
	}
	if targetID == "" {
		return
	}

	content := formatter.Build(toFormatterMessage(msg), nil, nil)
	if content == "" {
		content = formatter.UnknownContentPlaceholder
	}
	embeds := buildEmbeds(msg, side.CDNHost, content)

	if err := side.Target.SendUpdateMessage(targetChannel, targetID, "", embeds); err != nil {
		side.recordError()
		log.Errorf("relay update %s->%s: %v", msg.ChannelID, targetChannel, err)
		return
	}
	side.recordRelay("update")
}

// relayDelete mirrors a MESSAGE_DELETE and forgets the mapping.
func (e *Engine) relayDelete(side Side, del *gateway.DeleteEvent, log *logrus.Entry) {
	if del == nil {
		return
	}
	targetChannel, ok := e.targetChannel(side, del.ChannelID)
	if !ok {
		return
	}
	pairID := config.PairID(del.ChannelID, targetChannel)
	ctx := context.Background()

	targetID, err := side.Store.GetTarget(ctx, pairID, del.ID)
	if err != nil {
		log.Errorf("lookup pair %s: %v", pairID, err)
		return
	}
	if targetID == "" {
		return
	}

	if err := side.Target.SendDeleteMessage(targetChannel, targetID); err != nil {
		side.recordError()
		log.Errorf("relay delete %s->%s: %v", del.ChannelID, targetChannel, err)
		return
	}
	side.recordRelay("delete")
	if err := side.Store.DeletePair(ctx, pairID, del.ID); err != nil {
		log.Errorf("forget pair %s: %v", pairID, err)
	}
}

// resolveReply turns a message's referenced_message into the target-side id
// to reply to, and decides whether the reply should ping.
//
// When the replied-to message was authored by this bridge's own account, it
// was itself a mirrored message: the id the opposite side actually sent is
// looked up via OtherStore's GetSource (pairID in target->source direction),
// not this side's own GetTarget.
func (e *Engine) resolveReply(side Side, msg *gateway.Message, targetChannel string) (replyID string, ping bool) {
	if msg.Reference == nil {
		return "", true
	}

	if msg.Reference.UserID == side.Gateway.MyID() {
		crossPairID := config.PairID(targetChannel, msg.ChannelID)
		id, err := side.OtherStore.GetSource(context.Background(), crossPairID, msg.Reference.ID)
		if err != nil {
			logging.WithField("bridge", side.Name).Errorf("cross lookup %s: %v", crossPairID, err)
		}
		replyID = id
	} else {
		pairID := config.PairID(msg.ChannelID, targetChannel)
		id, err := side.Store.GetTarget(context.Background(), pairID, msg.Reference.ID)
		if err != nil {
			logging.WithField("bridge", side.Name).Errorf("lookup pair %s: %v", pairID, err)
		}
		replyID = id
	}

	ping = false
	for _, m := range msg.Reference.Mentions {
		if m.ID == side.Gateway.MyID() {
			ping = true
			break
		}
	}
	return replyID, ping
}

func toFormatterMessage(msg *gateway.Message) formatter.Message {
	fm := formatter.Message{Content: msg.Content}
	for _, m := range msg.Mentions {
		fm.Mentions = append(fm.Mentions, formatter.User{ID: m.ID, Username: m.Username})
	}
	for _, em := range msg.Embeds {
		fm.Embeds = append(fm.Embeds, formatter.Embed{
			URL:        em.URL,
			Type:       em.Type,
			HasMainURL: em.MainURL != "",
		})
	}
	for _, st := range msg.Stickers {
		fm.Stickers = append(fm.Stickers, formatter.Sticker{Name: st.Name, FormatType: st.FormatType})
	}
	if msg.Interaction != nil {
		fm.Interaction = &formatter.Interaction{Username: msg.Interaction.Username, Command: msg.Interaction.Command}
	}
	if msg.Poll != nil {
		poll := &formatter.Poll{Question: msg.Poll.Question, Expires: msg.Poll.Expires}
		for _, opt := range msg.Poll.Options {
			poll.Options = append(poll.Options, formatter.PollOption{Answer: opt.Answer, Count: opt.Count, MeVoted: opt.MeVoted})
		}
		fm.Poll = poll
	}
	return fm
}

func buildEmbeds(msg *gateway.Message, cdnHost, description string) []map[string]any {
	author := map[string]any{"name": msg.AuthorName()}
	if avatar := msg.AuthorAvatarURL(cdnHost, 80); avatar != "" {
		author["icon_url"] = avatar
	}
	return []map[string]any{{
		"type":        "rich",
		"author":      author,
		"description": description,
	}}
}
