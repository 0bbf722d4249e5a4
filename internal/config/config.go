// Package config manages the bot's global key-value configuration. The
// configuration lives in a single JSON document (bot credentials, admin user
// ids, auto-invite list, feature toggles) that is read at startup, re-read
// when edited on disk, and rewritten on every Set.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// Well-known option keys.
const (
	KeyBotToken        = "bot_token"
	KeyAppToken        = "app_token"
	KeyBotName         = "bot_name"
	KeyAdminUsers      = "admin_users"
	KeyAutoInvite      = "auto_invite"
	KeyMaintenanceMode = "maintenance_mode"
	KeySendHelpAsDM    = "send_help_as_dm"
	KeyWolframAppID    = "wolfram_app_id"
	KeyWatchKeywords   = "delete_watch_keywords"
	KeyIntroMessage    = "intro_message"

	KeySolveTrackerRepoPath    = "solvetracker_repopath"
	KeySolveTrackerTemplateDir = "solvetracker_templates"
	KeySolveTrackerAuthor      = "solvetracker_author"
	KeySolveTrackerEmail       = "solvetracker_email"
	KeySolveTrackerUser        = "solvetracker_repouser"
	KeySolveTrackerPass        = "solvetracker_repopass"
	KeySolveTrackerBranch      = "solvetracker_branch"

	KeyLinksaveDBPath   = "linksave_db"
	KeyLinksaveRepoURL  = "linksave_repo_url"
	KeyLinksaveUsers    = "linksave_allowed_users"
	KeyLinksaveRepoPath = "linksave_repopath"

	KeyQueueInterval = "message_queue_interval"
	KeyQueueEnabled  = "message_queue_enabled"

	KeyRankTeamName  = "rank_team_name"
	KeyRankChannel   = "rank_channel"
	KeyRankStateFile = "rank_statefile"
)

// Store is the process-wide configuration dictionary, guarded by its own
// lock and persisted to its backing file on every write.
type Store struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	values  map[string]any
	watcher *fsnotify.Watcher
}

// Load reads the configuration document from path. The file must exist and
// parse; a bot without credentials cannot run. The decoder accepts JSON5 so
// hand-edited files may carry comments and trailing commas.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger.With("component", "config"),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", s.path, err)
	}
	expanded := os.ExpandEnv(string(data))

	var values map[string]any
	if err := json5.Unmarshal([]byte(expanded), &values); err != nil {
		return fmt.Errorf("parse config %s: %w", s.path, err)
	}
	if values == nil {
		values = map[string]any{}
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the raw value for an option, or nil when unset.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// GetString returns a string option, or "" when unset or of another type.
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key).(string)
	return v
}

// GetBool interprets an option as a feature toggle. Accepts native booleans
// plus the "1"/"true" strings older config files used.
func (s *Store) GetBool(key string) bool {
	switch v := s.Get(key).(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true"
	case float64:
		return v != 0
	default:
		return false
	}
}

// GetInt returns an integer option, or def when unset or not a number.
func (s *Store) GetInt(key string, def int) int {
	switch v := s.Get(key).(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// GetStringSlice returns a list option. JSON decodes lists as []any, so
// entries are converted one by one.
func (s *Store) GetStringSlice(key string) []string {
	switch v := s.Get(key).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Has reports whether an option exists in the document.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Keys returns all option names currently present.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Set updates an option and immediately rewrites the backing file.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.persist()
}

// IsAdmin reports whether the user id is in the admin_users list. The admin
// set is read from the live document on every call, never cached.
func (s *Store) IsAdmin(userID string) bool {
	for _, admin := range s.GetStringSlice(KeyAdminUsers) {
		if admin == userID {
			return true
		}
	}
	return false
}

// AddAdmin appends a user to admin_users; reports false if already present.
func (s *Store) AddAdmin(userID string) (bool, error) {
	if s.IsAdmin(userID) {
		return false, nil
	}
	admins := append(s.GetStringSlice(KeyAdminUsers), userID)
	return true, s.Set(KeyAdminUsers, admins)
}

// RemoveAdmin removes a user from admin_users; reports false if absent.
func (s *Store) RemoveAdmin(userID string) (bool, error) {
	admins := s.GetStringSlice(KeyAdminUsers)
	for i, admin := range admins {
		if admin == userID {
			admins = append(admins[:i], admins[i+1:]...)
			return true, s.Set(KeyAdminUsers, admins)
		}
	}
	return false, nil
}

// persist writes the document back as plain pretty-printed JSON. Callers
// must hold the write lock.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	return nil
}

// Watch starts re-reading the file when it changes on disk, so admins can
// hand-edit the config without restarting the bot. Stop with Close.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config %s: %w", s.path, err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Error("config reload failed", "error", err)
					continue
				}
				s.logger.Info("config reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if running.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
