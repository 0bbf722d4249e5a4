package irc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lrstanley/girc"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/pkg/models"
)

const reconnectDelay = 60 * time.Second

// Server drives one girc client for a registered IRC server and relays
// traffic between its bridges and Slack.
type Server struct {
	backend chat.Backend
	queue   *MessageQueue
	logger  *slog.Logger

	mu            sync.Mutex
	info          *models.IRCServerInfo
	client        *girc.Client
	disconnecting bool
	running       bool
}

func newServer(info *models.IRCServerInfo, backend chat.Backend, queue *MessageQueue, logger *slog.Logger) *Server {
	info.Status = models.IRCServerDisconnected
	for _, bridge := range info.Bridges {
		bridge.Status = models.IRCBridgeDisconnected
	}
	return &Server{
		backend: backend,
		queue:   queue,
		logger:  logger.With("component", "ircserver", "server", info.Name),
		info:    info,
	}
}

// Info returns a point-in-time copy of the server's state.
func (s *Server) Info() models.IRCServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.info
	copied.Bridges = map[string]*models.IRCBridge{}
	for name, bridge := range s.info.Bridges {
		b := *bridge
		copied.Bridges[name] = &b
	}
	return copied
}

// Connect builds the girc client and runs the connection loop in its own
// goroutine. Unplanned disconnects retry after a fixed delay until a
// cooperative disconnect is requested.
func (s *Server) Connect(originChannelID string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.disconnecting = false
	s.info.Status = models.IRCServerAuthenticating
	s.info.OriginChannelID = originChannelID

	client := girc.New(girc.Config{
		Server: s.info.Host,
		Port:   s.info.Port,
		Nick:   s.info.Nick,
		User:   s.info.Nick,
		Name:   s.info.Realname,
	})
	s.client = client
	s.mu.Unlock()

	client.Handlers.AddBg(girc.CONNECTED, func(_ *girc.Client, _ girc.Event) {
		s.mu.Lock()
		s.info.Status = models.IRCServerConnected
		s.mu.Unlock()
		s.systemMessage(fmt.Sprintf("Server *%s* connected to IRC (*%s*).", s.info.Name, s.info.Host))
	})

	client.Handlers.AddBg(girc.JOIN, func(c *girc.Client, e girc.Event) {
		if e.Source == nil || e.Source.Name != c.GetNick() || len(e.Params) == 0 {
			return
		}
		if bridge := s.bridgeForIRCChannel(e.Params[0]); bridge != nil {
			s.bridgeSystemMessage(bridge, fmt.Sprintf("Bridge *%s* joined channel *%s* on *%s*.",
				bridge.BridgeName, bridge.IRCChannel, s.info.Name))
		}
	})

	client.Handlers.AddBg(girc.PART, func(c *girc.Client, e girc.Event) {
		if e.Source == nil || e.Source.Name != c.GetNick() || len(e.Params) == 0 {
			return
		}
		if bridge := s.bridgeForIRCChannel(e.Params[0]); bridge != nil {
			s.bridgeSystemMessage(bridge, fmt.Sprintf("Bridge *%s* left channel *%s* on *%s*.",
				bridge.BridgeName, bridge.IRCChannel, s.info.Name))
		}
	})

	client.Handlers.AddBg(girc.KICK, func(c *girc.Client, e girc.Event) {
		if len(e.Params) < 2 || e.Params[1] != c.GetNick() {
			return
		}
		if bridge := s.bridgeForIRCChannel(e.Params[0]); bridge != nil {
			s.mu.Lock()
			bridge.Status = models.IRCBridgeDisconnected
			s.mu.Unlock()
			s.bridgeSystemMessage(bridge, fmt.Sprintf("Bridge *%s* was kicked from channel *%s*.",
				bridge.BridgeName, bridge.IRCChannel))
		}
	})

	client.Handlers.AddBg(girc.PRIVMSG, func(_ *girc.Client, e girc.Event) {
		if e.Source == nil || len(e.Params) < 2 || !girc.IsValidChannel(e.Params[0]) {
			return
		}
		bridge := s.bridgeForIRCChannel(e.Params[0])
		if bridge == nil {
			return
		}
		sender := fmt.Sprintf("<%s> %s", e.Source.Name, bridge.IRCChannel)
		s.queue.Add(context.Background(), bridge.SlackChannelID, "IRC", sender, e.Last())
	})

	s.systemMessage(fmt.Sprintf("Server *%s* starts connecting to *%s*. Please wait...", s.info.Name, s.info.Host))

	go s.run(client)
}

// run owns the client's connection lifecycle until a cooperative disconnect.
func (s *Server) run(client *girc.Client) {
	for {
		err := client.Connect()

		s.mu.Lock()
		s.info.Status = models.IRCServerDisconnected
		for _, bridge := range s.info.Bridges {
			bridge.Status = models.IRCBridgeDisconnected
		}
		planned := s.disconnecting
		s.mu.Unlock()

		s.broadcastMessage(fmt.Sprintf("Server *%s* disconnected from IRC.", s.info.Name))

		if planned {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			s.logger.Info("irc connection closed")
			return
		}

		if err != nil {
			s.logger.Error("irc connection failed", "error", err)
		}
		s.broadcastMessage(fmt.Sprintf("Server *%s* will try to reconnect in 60 seconds.", s.info.Name))
		time.Sleep(reconnectDelay)

		s.mu.Lock()
		if s.disconnecting {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.info.Status = models.IRCServerAuthenticating
		s.mu.Unlock()
	}
}

// Disconnect requests a cooperative shutdown of the connection.
func (s *Server) Disconnect() {
	s.mu.Lock()
	s.disconnecting = true
	client := s.client
	for _, bridge := range s.info.Bridges {
		bridge.Status = models.IRCBridgeDisconnected
	}
	s.mu.Unlock()

	s.broadcastMessage(fmt.Sprintf("Server *%s* starts disconnecting from *%s*.", s.info.Name, s.info.Host))
	if client != nil {
		client.Close()
	}
}

// ConnectBridge joins the bridge's IRC channel. The server must be
// connected.
func (s *Server) ConnectBridge(bridgeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bridge, ok := s.info.Bridges[bridgeName]
	if !ok {
		return "", fmt.Errorf("Bridge *%s/%s* not found.", s.info.Name, bridgeName)
	}
	if bridge.Status == models.IRCBridgeConnected {
		return "", fmt.Errorf("Bridge *%s/%s* already connected.", s.info.Name, bridgeName)
	}
	s.client.Cmd.Join(bridge.IRCChannel)
	bridge.Status = models.IRCBridgeConnected
	return "", nil
}

// DisconnectBridge parts the bridge's IRC channel.
func (s *Server) DisconnectBridge(bridgeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bridge, ok := s.info.Bridges[bridgeName]
	if !ok {
		return "", fmt.Errorf("Bridge *%s/%s* not found.", s.info.Name, bridgeName)
	}
	if bridge.Status != models.IRCBridgeConnected {
		return "", fmt.Errorf("Bridge *%s/%s* isn't connected.", s.info.Name, bridgeName)
	}
	s.client.Cmd.Part(bridge.IRCChannel)
	bridge.Status = models.IRCBridgeDisconnected
	return "", nil
}

// AddBridge registers a new bridge on this server.
func (s *Server) AddBridge(bridgeName, ircChannel, slackChannelID, slackChannelName string) string {
	s.mu.Lock()
	s.info.AddBridge(bridgeName, ircChannel, slackChannelID, slackChannelName)
	s.mu.Unlock()
	return fmt.Sprintf("Added bridge *%s/%s*", s.info.Name, bridgeName)
}

// RemoveBridge unregisters a bridge, parting its channel if connected.
func (s *Server) RemoveBridge(bridgeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bridge, ok := s.info.Bridges[bridgeName]
	if !ok {
		return "", fmt.Errorf("No bridge *%s/%s* found.", s.info.Name, bridgeName)
	}
	if bridge.Status == models.IRCBridgeConnected && s.client != nil {
		s.client.Cmd.Part(bridge.IRCChannel)
	}
	s.info.RemoveBridge(bridgeName)
	return fmt.Sprintf("Removed bridge *%s/%s*", s.info.Name, bridgeName), nil
}

// RelayToIRC forwards a Slack message into the IRC channel bridged to the
// given Slack channel, if any.
func (s *Server) RelayToIRC(slackChannelID, sender, message string) bool {
	s.mu.Lock()
	bridge := s.info.BridgeForSlackChannel(slackChannelID)
	connected := bridge != nil && bridge.Status == models.IRCBridgeConnected && s.client != nil
	client := s.client
	s.mu.Unlock()

	if !connected {
		return false
	}
	client.Cmd.Message(bridge.IRCChannel, fmt.Sprintf("<%s> %s", sender, message))
	return true
}

func (s *Server) bridgeForIRCChannel(channel string) *models.IRCBridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.BridgeForIRCChannel(channel)
}

// systemMessage posts to the channel the server was started from.
func (s *Server) systemMessage(message string) {
	s.mu.Lock()
	origin := s.info.OriginChannelID
	s.mu.Unlock()
	if origin == "" {
		return
	}
	text := fmt.Sprintf("_IRC_ *<SYSTEM>*: %s", message)
	if err := s.backend.PostMessage(context.Background(), origin, text); err != nil {
		s.logger.Error("posting system message failed", "error", err)
	}
}

// bridgeSystemMessage posts to a bridge's Slack channel.
func (s *Server) bridgeSystemMessage(bridge *models.IRCBridge, message string) {
	text := fmt.Sprintf("_IRC_ *<SYSTEM>*: %s", message)
	if err := s.backend.PostMessage(context.Background(), bridge.SlackChannelID, text); err != nil {
		s.logger.Error("posting bridge message failed", "bridge", bridge.BridgeName, "error", err)
	}
}

// broadcastMessage posts to the origin channel and every bridge channel,
// skipping duplicates.
func (s *Server) broadcastMessage(message string) {
	s.mu.Lock()
	seen := map[string]bool{}
	var targets []string
	if s.info.OriginChannelID != "" {
		targets = append(targets, s.info.OriginChannelID)
		seen[s.info.OriginChannelID] = true
	}
	for _, bridge := range s.info.Bridges {
		if !seen[bridge.SlackChannelID] {
			targets = append(targets, bridge.SlackChannelID)
			seen[bridge.SlackChannelID] = true
		}
	}
	s.mu.Unlock()

	text := fmt.Sprintf("_IRC_ *<SYSTEM>*: %s", message)
	for _, channelID := range targets {
		if err := s.backend.PostMessage(context.Background(), channelID, text); err != nil {
			s.logger.Error("broadcast failed", "channel", channelID, "error", err)
		}
	}
}
