package irc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/pkg/models"
)

// Manager owns the pool of registered IRC servers. Registration changes are
// persisted through the server store so the pool survives restarts; every
// server comes back up disconnected.
type Manager struct {
	backend chat.Backend
	store   *store.Store[*models.IRCServerInfo]
	queue   *MessageQueue
	logger  *slog.Logger

	mu      sync.Mutex
	servers map[string]*Server
}

// NewManager builds the manager and its message queue from configuration.
func NewManager(backend chat.Backend, st *store.Store[*models.IRCServerInfo], conf *config.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	queue := NewMessageQueue(
		backend,
		conf.GetBool(config.KeyQueueEnabled),
		time.Duration(conf.GetInt(config.KeyQueueInterval, 5))*time.Second,
		logger,
	)
	return &Manager{
		backend: backend,
		store:   st,
		queue:   queue,
		logger:  logger.With("component", "ircmanager"),
		servers: map[string]*Server{},
	}
}

// Start loads persisted servers and launches the message queue.
func (m *Manager) Start() error {
	infos, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("load irc servers: %w", err)
	}

	m.mu.Lock()
	for name, info := range infos {
		m.servers[name] = newServer(info, m.backend, m.queue, m.logger)
	}
	m.mu.Unlock()

	m.queue.Start()
	m.logger.Info("irc manager started", "servers", len(infos))
	return nil
}

// Stop disconnects every running server and drains the queue.
func (m *Manager) Stop() {
	m.mu.Lock()
	servers := make([]*Server, 0, len(m.servers))
	for _, srv := range m.servers {
		servers = append(servers, srv)
	}
	m.mu.Unlock()

	for _, srv := range servers {
		if srv.Info().Status != models.IRCServerDisconnected {
			srv.Disconnect()
		}
	}
	m.queue.Stop()
}

// stripSlackLink undoes Slack's <url|label> link formatting on a hostname
// argument.
func stripSlackLink(host string) string {
	if strings.HasPrefix(host, "<") && strings.HasSuffix(host, ">") {
		host = host[1 : len(host)-1]
		if i := strings.Index(host, "|"); i >= 0 {
			host = host[i+1:]
		}
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
	}
	return host
}

// AddServer registers a new IRC server.
func (m *Manager) AddServer(name, host string, port int, nick, realname string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[name]; exists {
		return "", fmt.Errorf("IRC server *%s* already exists.", name)
	}

	info := models.NewIRCServerInfo(name, stripSlackLink(host), port, nick, realname)
	m.servers[name] = newServer(info, m.backend, m.queue, m.logger)

	if err := m.persistLocked(); err != nil {
		delete(m.servers, name)
		m.logger.Error("persisting irc servers failed", "error", err)
		return "", fmt.Errorf("Sorry, couldn't register the irc server. Please check the server logs.")
	}
	return fmt.Sprintf("IRC server *%s* registered.", name), nil
}

// RemoveServer disconnects and unregisters a server.
func (m *Manager) RemoveServer(name string) (string, error) {
	m.mu.Lock()
	srv, exists := m.servers[name]
	m.mu.Unlock()
	if !exists {
		return "", fmt.Errorf("There is no IRC server *%s*.", name)
	}

	if srv.Info().Status != models.IRCServerDisconnected {
		srv.Disconnect()
	}

	m.mu.Lock()
	delete(m.servers, name)
	err := m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("persisting irc servers failed", "error", err)
	}
	return fmt.Sprintf("IRC server *%s* removed.", name), nil
}

// StartServer begins connecting a registered server.
func (m *Manager) StartServer(name, originChannelID string) error {
	m.mu.Lock()
	srv, exists := m.servers[name]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("IRC server *%s* not found.", name)
	}

	switch srv.Info().Status {
	case models.IRCServerConnected:
		return fmt.Errorf("IRC server *%s* is already connected.", name)
	case models.IRCServerConnecting, models.IRCServerAuthenticating:
		return fmt.Errorf("IRC server *%s* is already connecting.", name)
	}

	srv.Connect(originChannelID)
	return nil
}

// StopServer requests a cooperative disconnect.
func (m *Manager) StopServer(name string) error {
	m.mu.Lock()
	srv, exists := m.servers[name]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("IRC server *%s* not found.", name)
	}
	if srv.Info().Status != models.IRCServerConnected {
		return fmt.Errorf("IRC server *%s* is not connected.", name)
	}
	srv.Disconnect()
	return nil
}

// AddBridge registers a bridge on a server.
func (m *Manager) AddBridge(serverName, bridgeName, ircChannel, slackChannelID, slackChannelName string) (string, error) {
	m.mu.Lock()
	srv, exists := m.servers[serverName]
	m.mu.Unlock()
	if !exists {
		return "", fmt.Errorf("There is no IRC server *%s*.", serverName)
	}

	msg := srv.AddBridge(bridgeName, ircChannel, slackChannelID, slackChannelName)

	m.mu.Lock()
	err := m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("persisting irc servers failed", "error", err)
	}
	return msg, nil
}

// RemoveBridge unregisters a bridge from a server.
func (m *Manager) RemoveBridge(serverName, bridgeName string) (string, error) {
	m.mu.Lock()
	srv, exists := m.servers[serverName]
	m.mu.Unlock()
	if !exists {
		return "", fmt.Errorf("There is no IRC server *%s*.", serverName)
	}

	msg, err := srv.RemoveBridge(bridgeName)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	perr := m.persistLocked()
	m.mu.Unlock()
	if perr != nil {
		m.logger.Error("persisting irc servers failed", "error", perr)
	}
	return msg, nil
}

// StartBridge joins a bridge's IRC channel. The parent server must be
// connected.
func (m *Manager) StartBridge(serverName, bridgeName string) error {
	m.mu.Lock()
	srv, exists := m.servers[serverName]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("There is no IRC server *%s*.", serverName)
	}
	if srv.Info().Status != models.IRCServerConnected {
		return fmt.Errorf("The specified IRC server isn't connected. Connect to IRC first.")
	}
	_, err := srv.ConnectBridge(bridgeName)
	return err
}

// StopBridge parts a bridge's IRC channel.
func (m *Manager) StopBridge(serverName, bridgeName string) error {
	m.mu.Lock()
	srv, exists := m.servers[serverName]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("There is no IRC server *%s*.", serverName)
	}
	if srv.Info().Status != models.IRCServerConnected {
		return fmt.Errorf("The specified IRC server isn't connected.")
	}
	_, err := srv.DisconnectBridge(bridgeName)
	return err
}

// Status returns a snapshot of every registered server, sorted by name.
func (m *Manager) Status() []models.IRCServerInfo {
	m.mu.Lock()
	servers := make([]*Server, 0, len(m.servers))
	for _, srv := range m.servers {
		servers = append(servers, srv)
	}
	m.mu.Unlock()

	infos := make([]models.IRCServerInfo, 0, len(servers))
	for _, srv := range servers {
		infos = append(infos, srv.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RelaySlackMessage forwards a Slack channel message into any bridge paired
// with that channel. Reports whether a bridge relayed it.
func (m *Manager) RelaySlackMessage(_ context.Context, slackChannelID, sender, message string) bool {
	m.mu.Lock()
	servers := make([]*Server, 0, len(m.servers))
	for _, srv := range m.servers {
		servers = append(servers, srv)
	}
	m.mu.Unlock()

	relayed := false
	for _, srv := range servers {
		if srv.RelayToIRC(slackChannelID, sender, message) {
			relayed = true
		}
	}
	return relayed
}

// persistLocked snapshots every server's info into the store. Callers hold
// m.mu.
func (m *Manager) persistLocked() error {
	infos := map[string]*models.IRCServerInfo{}
	for name, srv := range m.servers {
		info := srv.Info()
		infos[name] = &info
	}
	return m.store.Save(infos)
}
