// Package server owns the bot lifecycle: it drains the backend event
// stream, dispatches commands and reactions through the registry, relays
// plain chatter to the IRC bridges, and runs the scheduled background
// services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/irc"
)

// purposeWarning goes into a channel whenever someone other than the bot
// edits the purpose. The purpose stores bot state, so manual edits can
// corrupt it.
const purposeWarning = "Please do not change the channel purpose manually. " +
	"The purpose is used to store bot data and will be overwritten."

// Server wires the chat backend to the command registry and the auxiliary
// services. One Server runs per process.
type Server struct {
	backend  chat.Backend
	source   chat.EventSource
	registry *commands.Registry
	conf     *config.Store
	irc      *irc.Manager
	rank     *RankWatcher
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New builds the server. ircManager and rank may be nil when the feature is
// not configured.
func New(backend chat.Backend, source chat.EventSource, registry *commands.Registry,
	conf *config.Store, ircManager *irc.Manager, rank *RankWatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		backend:  backend,
		source:   source,
		registry: registry,
		conf:     conf,
		irc:      ircManager,
		rank:     rank,
		logger:   logger.With("component", "server"),
	}
}

// Run blocks until the context is cancelled or the event stream closes.
// Dispatch runs one goroutine per event so a slow command never stalls the
// loop.
func (s *Server) Run(ctx context.Context) error {
	scheduler := cron.New()
	if s.rank != nil {
		if _, err := scheduler.AddFunc("@hourly", func() { s.rank.Check(ctx) }); err != nil {
			return fmt.Errorf("schedule rank watcher: %w", err)
		}
		s.logger.Info("rank watcher scheduled")
	}
	scheduler.Start()
	defer scheduler.Stop()

	s.logger.Info("event loop started")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case event, ok := <-s.source.Events():
			if !ok {
				s.wg.Wait()
				return nil
			}
			s.dispatch(ctx, event)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, event chat.Event) {
	switch event.Kind {
	case chat.EventCommand:
		s.spawn(func() {
			s.registry.ProcessMessage(ctx, s.backend, event.Text, event.Timestamp, event.ChannelID, event.UserID)
		})
	case chat.EventReaction:
		s.spawn(func() {
			s.registry.ProcessReaction(ctx, s.backend, event.Reaction, event.Timestamp, event.ChannelID, event.UserID)
		})
	case chat.EventMessage:
		if s.irc != nil {
			s.spawn(func() { s.relayToIRC(ctx, event) })
		}
	case chat.EventPurposeChanged:
		s.spawn(func() { s.warnPurposeChanged(ctx, event) })
	case chat.EventMessageDeleted:
		s.spawn(func() { s.auditDeleted(ctx, event) })
	case chat.EventChannelCreated:
		s.spawn(func() { s.autoInvite(ctx, event) })
	}
}

func (s *Server) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Server) relayToIRC(ctx context.Context, event chat.Event) {
	sender := event.UserID
	if name, err := s.backend.MemberName(ctx, event.UserID); err == nil {
		sender = name
	}
	s.irc.RelaySlackMessage(ctx, event.ChannelID, sender, event.Text)
}

func (s *Server) warnPurposeChanged(ctx context.Context, event chat.Event) {
	s.logger.Warn("channel purpose edited", "channel", event.ChannelID, "user", event.UserID)
	if err := s.backend.PostMessage(ctx, event.ChannelID, purposeWarning); err != nil {
		s.logger.Error("posting purpose warning failed", "channel", event.ChannelID, "error", err)
	}
}

// auditDeleted posts an audit trail for deleted messages that contain one of
// the configured watch keywords. Everything else is let go silently.
func (s *Server) auditDeleted(ctx context.Context, event chat.Event) {
	keywords := s.conf.GetStringSlice(config.KeyWatchKeywords)
	if !containsKeyword(event.Text, keywords) {
		return
	}
	s.logger.Info("watched message deleted", "channel", event.ChannelID, "user", event.UserID)
	text := fmt.Sprintf("A message from <@%s> was deleted:\n```%s```", event.UserID, event.Text)
	if err := s.backend.PostMessage(ctx, event.ChannelID, text); err != nil {
		s.logger.Error("posting delete audit failed", "channel", event.ChannelID, "error", err)
	}
}

func containsKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// autoInvite pulls the configured users into every freshly created channel.
func (s *Server) autoInvite(ctx context.Context, event chat.Event) {
	for _, userID := range s.conf.GetStringSlice(config.KeyAutoInvite) {
		if userID == event.UserID {
			continue
		}
		if err := s.backend.InviteUser(ctx, event.ChannelID, userID); err != nil {
			s.logger.Warn("auto invite failed", "channel", event.ChannelID, "user", userID, "error", err)
		}
	}
}
