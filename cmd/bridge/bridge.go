package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sparklost/spacebar-bridge/internal/bridge"
	"github.com/sparklost/spacebar-bridge/internal/config"
	"github.com/sparklost/spacebar-bridge/internal/gateway"
	"github.com/sparklost/spacebar-bridge/internal/health"
	"github.com/sparklost/spacebar-bridge/internal/logging"
	"github.com/sparklost/spacebar-bridge/internal/pairstore"
	"github.com/sparklost/spacebar-bridge/internal/restclient"
)

// Bridge owns every long-lived component of one running process: both
// gateway sessions, both pair stores, the relay engine, and the health
// server. The cleanup scheduler is created and stopped by runBridge.
type Bridge struct {
	cfg *config.Config

	gatewayDiscord  *gateway.Session
	gatewaySpacebar *gateway.Session

	storeDiscord  pairstore.Store
	storeSpacebar pairstore.Store

	engine *bridge.Engine
	health *health.Server
}

// NewBridge loads config.json and wires up every component: database
// backends first, then REST clients, then gateway sessions.
func NewBridge(configPath string) (*Bridge, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	storeDiscord, err := pairstore.Open(ctx, cfg, "bridge_discord_msgs", "discord.db", "Discord")
	if err != nil {
		return nil, fmt.Errorf("open discord pair store: %w", err)
	}
	storeSpacebar, err := pairstore.Open(ctx, cfg, "bridge_spacebar_msgs", "spacebar.db", "Spacebar")
	if err != nil {
		return nil, fmt.Errorf("open spacebar pair store: %w", err)
	}

	discordChannels := map[string]string{}
	spacebarChannels := map[string]string{}
	for _, b := range cfg.Bridges {
		discordChannels[b.DiscordChannelID] = b.SpacebarChannelID
		spacebarChannels[b.SpacebarChannelID] = b.DiscordChannelID
		if err := storeDiscord.CreateTable(ctx, config.PairID(b.DiscordChannelID, b.SpacebarChannelID)); err != nil {
			return nil, fmt.Errorf("create discord pair table: %w", err)
		}
		if err := storeSpacebar.CreateTable(ctx, config.PairID(b.SpacebarChannelID, b.DiscordChannelID)); err != nil {
			return nil, fmt.Errorf("create spacebar pair table: %w", err)
		}
	}

	restDiscord := restclient.New("Discord", cfg.Discord.Host, cfg.Discord.CDNHost, cfg.Discord.Token)
	restSpacebar := restclient.New("Spacebar", cfg.Spacebar.Host, cfg.Spacebar.CDNHost, cfg.Spacebar.Token)

	gatewayDiscord := gateway.New("Discord", cfg.Discord.Token, cfg.Discord.Host, true)
	gatewaySpacebar := gateway.New("Spacebar", cfg.Spacebar.Token, cfg.Spacebar.Host, false)

	b := &Bridge{
		cfg:             cfg,
		gatewayDiscord:  gatewayDiscord,
		gatewaySpacebar: gatewaySpacebar,
		storeDiscord:    storeDiscord,
		storeSpacebar:   storeSpacebar,
	}
	b.health = health.NewServer(b)

	sideA := bridge.Side{
		Name:       "Discord",
		Gateway:    gatewayDiscord,
		Target:     restSpacebar,
		Store:      storeDiscord,
		OtherStore: storeSpacebar,
		CDNHost:    cfg.Discord.CDNHost,
		GuildID:    cfg.SpacebarGuildID,
		Channels:   discordChannels,
		Metrics:    b.health,
	}
	sideB := bridge.Side{
		Name:       "Spacebar",
		Gateway:    gatewaySpacebar,
		Target:     restDiscord,
		Store:      storeSpacebar,
		OtherStore: storeDiscord,
		CDNHost:    cfg.Spacebar.CDNHost,
		GuildID:    cfg.DiscordGuildID,
		Channels:   spacebarChannels,
		Metrics:    b.health,
	}
	b.engine = bridge.New(sideA, sideB)
	return b, nil
}

// GatewayStatuses implements health.StatusProvider.
func (b *Bridge) GatewayStatuses() []health.GatewayStatus {
	return []health.GatewayStatus{
		{Name: "Discord", Ready: b.gatewayDiscord.Ready(), Err: b.gatewayDiscord.Err()},
		{Name: "Spacebar", Ready: b.gatewaySpacebar.Ready(), Err: b.gatewaySpacebar.Err()},
	}
}

// Run starts both gateway sessions, waits for both to become ready, then
// blocks running the relay engine until ctx is cancelled or a gateway fails
// fatally.
func (b *Bridge) Run(ctx context.Context) error {
	gatewayErrs := make(chan error, 2)
	go func() { gatewayErrs <- b.gatewayDiscord.Run(ctx) }()
	go func() { gatewayErrs <- b.gatewaySpacebar.Run(ctx) }()

	if err := b.waitReady(ctx); err != nil {
		return err
	}
	logging.Infof("bridge initialized successfully")

	engineErrs := make(chan error, 1)
	go func() { engineErrs <- b.engine.Run(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-gatewayErrs:
		return fmt.Errorf("gateway: %w", err)
	case err := <-engineErrs:
		return err
	}
}

func (b *Bridge) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.gatewayDiscord.Ready() && b.gatewaySpacebar.Ready() {
			return nil
		}
		if err := b.gatewayDiscord.Err(); err != nil {
			return fmt.Errorf("discord gateway: %w", err)
		}
		if err := b.gatewaySpacebar.Err(); err != nil {
			return fmt.Errorf("spacebar gateway: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases both pair stores' connections.
func (b *Bridge) Close() error {
	err1 := b.storeDiscord.Close()
	err2 := b.storeSpacebar.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
