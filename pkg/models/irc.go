package models

// IRCServerStatus tracks the lifecycle of a registered IRC server connection.
type IRCServerStatus string

const (
	IRCServerDisconnected   IRCServerStatus = "disconnected"
	IRCServerConnecting     IRCServerStatus = "connecting"
	IRCServerAuthenticating IRCServerStatus = "authenticating"
	IRCServerConnected      IRCServerStatus = "connected"
)

// IRCBridgeStatus tracks whether a single bridge has joined its IRC channel.
type IRCBridgeStatus string

const (
	IRCBridgeDisconnected IRCBridgeStatus = "disconnected"
	IRCBridgeConnected    IRCBridgeStatus = "connected"
)

// IRCBridge pairs one IRC channel with one Slack channel. A bridge can only
// be connected while its parent server is connected.
type IRCBridge struct {
	BridgeName       string          `json:"bridge_name"`
	ServerName       string          `json:"server_name"`
	IRCChannel       string          `json:"irc_channel"`
	SlackChannelID   string          `json:"slack_channel_id"`
	SlackChannelName string          `json:"slack_channel_name"`
	Status           IRCBridgeStatus `json:"status"`
}

// IRCServerInfo holds connection parameters and bridges for one IRC server.
// Status and OriginChannelID are runtime state; they are persisted so a
// status listing after restart still shows where a server was started from,
// but every server comes back up disconnected.
type IRCServerInfo struct {
	Name            string                `json:"name"`
	Host            string                `json:"host"`
	Port            int                   `json:"port"`
	Nick            string                `json:"nick"`
	Realname        string                `json:"realname"`
	Status          IRCServerStatus       `json:"status"`
	OriginChannelID string                `json:"origin_channel_id,omitempty"`
	Bridges         map[string]*IRCBridge `json:"bridges"`
}

// NewIRCServerInfo creates a disconnected server entry.
func NewIRCServerInfo(name, host string, port int, nick, realname string) *IRCServerInfo {
	return &IRCServerInfo{
		Name:     name,
		Host:     host,
		Port:     port,
		Nick:     nick,
		Realname: realname,
		Status:   IRCServerDisconnected,
		Bridges:  map[string]*IRCBridge{},
	}
}

// AddBridge registers a bridge on this server, disconnected.
func (s *IRCServerInfo) AddBridge(bridgeName, ircChannel, slackChannelID, slackChannelName string) *IRCBridge {
	if s.Bridges == nil {
		s.Bridges = map[string]*IRCBridge{}
	}
	b := &IRCBridge{
		BridgeName:       bridgeName,
		ServerName:       s.Name,
		IRCChannel:       ircChannel,
		SlackChannelID:   slackChannelID,
		SlackChannelName: slackChannelName,
		Status:           IRCBridgeDisconnected,
	}
	s.Bridges[bridgeName] = b
	return b
}

// RemoveBridge unregisters a bridge and reports whether it existed.
func (s *IRCServerInfo) RemoveBridge(bridgeName string) bool {
	if _, ok := s.Bridges[bridgeName]; !ok {
		return false
	}
	delete(s.Bridges, bridgeName)
	return true
}

// BridgeForIRCChannel returns the bridge joined to the given IRC channel,
// or nil.
func (s *IRCServerInfo) BridgeForIRCChannel(channel string) *IRCBridge {
	for _, b := range s.Bridges {
		if b.IRCChannel == channel {
			return b
		}
	}
	return nil
}

// BridgeForSlackChannel returns the bridge paired with the given Slack
// channel, or nil.
func (s *IRCServerInfo) BridgeForSlackChannel(channelID string) *IRCBridge {
	for _, b := range s.Bridges {
		if b.SlackChannelID == channelID {
			return b
		}
	}
	return nil
}
