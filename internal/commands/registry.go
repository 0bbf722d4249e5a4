package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/config"
)

// Registry is the central router. It maps handler names to handlers and
// resolves inbound command text per the two-level routing scheme: explicit
// `!handler command args` dispatch, or broadcast of a bare `!command` to
// every handler that can handle it.
type Registry struct {
	logger *slog.Logger
	conf   *config.Store

	mu       sync.RWMutex
	handlers map[string]*Handler
	order    []string
}

// NewRegistry creates an empty registry bound to the global configuration.
func NewRegistry(conf *config.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With("component", "dispatcher"),
		conf:     conf,
		handlers: map[string]*Handler{},
	}
}

// Register adds a handler under its namespace. Handlers register during
// startup, before the dispatcher processes events.
func (r *Registry) Register(h *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("registering handler", "handler", h.Name())
	if _, exists := r.handlers[h.Name()]; !exists {
		r.order = append(r.order, h.Name())
	}
	r.handlers[h.Name()] = h
}

// Handler returns the handler registered under name, or nil.
func (r *Registry) Handler(name string) *Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[strings.ToLower(name)]
}

// ordered returns handlers in registration order for stable broadcast and
// combined help output.
func (r *Registry) ordered() []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

// ProcessMessage routes one inbound command line. The admin set and
// maintenance flag are read from live configuration on every call.
func (r *Registry) ProcessMessage(ctx context.Context, backend chat.Backend, text, timestamp, channelID, userID string) {
	r.logger.Debug("processing message", "text", text, "channel", channelID, "user", userID)

	args, err := tokenize(text)
	if err != nil {
		r.post(ctx, backend, channelID, "Command failed : Malformed input.")
		return
	}
	if len(args) == 0 {
		return
	}

	isAdmin := r.conf.IsAdmin(userID)
	maintenance := r.conf.GetBool(config.KeyMaintenanceMode)

	var (
		processed bool
		usage     strings.Builder
	)

	handlerName := strings.ToLower(args[0])
	if h := r.Handler(handlerName); h != nil {
		if len(args) < 2 || args[1] == "help" {
			usage.WriteString(h.Usage(isAdmin))
			processed = true
		} else {
			command := strings.ToLower(args[1])
			if h.CanHandle(command, isAdmin) {
				r.invoke(ctx, h, command, &Invocation{
					Backend:   backend,
					Args:      args[2:],
					Timestamp: timestamp,
					ChannelID: channelID,
					UserID:    userID,
					IsAdmin:   isAdmin,
				}, maintenance)
				processed = true
			}
		}
	} else {
		// Bare command: broadcast to every handler that knows it, so a
		// short name shared by several handlers triggers them all.
		command := strings.ToLower(args[0])
		for _, h := range r.ordered() {
			if command == "help" {
				usage.WriteString(h.Usage(isAdmin))
				usage.WriteString("\n")
				processed = true
				continue
			}
			if h.CanHandle(command, isAdmin) {
				r.invoke(ctx, h, command, &Invocation{
					Backend:   backend,
					Args:      args[1:],
					Timestamp: timestamp,
					ChannelID: channelID,
					UserID:    userID,
					IsAdmin:   isAdmin,
				}, maintenance)
				processed = true
			}
		}
	}

	if !processed {
		r.post(ctx, backend, channelID, fmt.Sprintf("Unknown handler or command : `%s`", text))
	}

	if usage.Len() > 0 {
		target := channelID
		if r.conf.GetBool(config.KeySendHelpAsDM) {
			target = userID
		}
		r.post(ctx, backend, target, usage.String())
	}
}

// ProcessReaction routes an emoji reaction to every handler whose reaction
// table knows it. No aliasing and no arity checking apply.
func (r *Registry) ProcessReaction(ctx context.Context, backend chat.Backend, reaction, timestamp, channelID, userID string) {
	r.logger.Debug("processing reaction", "reaction", reaction, "channel", channelID, "user", userID)

	isAdmin := r.conf.IsAdmin(userID)
	maintenance := r.conf.GetBool(config.KeyMaintenanceMode)

	for _, h := range r.ordered() {
		if !h.CanHandleReaction(reaction) {
			continue
		}
		reactionCounter.WithLabelValues(h.Name(), reaction).Inc()
		inv := &Invocation{
			Backend:   backend,
			Timestamp: timestamp,
			ChannelID: channelID,
			UserID:    userID,
			IsAdmin:   isAdmin,
		}
		if err := r.guarded(ctx, h, reaction, func() error {
			return h.ProcessReaction(ctx, inv, reaction, maintenance)
		}); err != nil {
			var userErr *UserError
			if errors.As(err, &userErr) {
				r.post(ctx, backend, channelID, userErr.Message)
			}
		}
	}
}

// invoke runs a command through its handler, turns user errors into chat
// replies, and logs everything else. One bad command never takes down the
// event loop.
func (r *Registry) invoke(ctx context.Context, h *Handler, command string, inv *Invocation, maintenance bool) {
	commandCounter.WithLabelValues(h.Name(), command).Inc()

	err := r.guarded(ctx, h, command, func() error {
		return h.Process(ctx, inv, command, maintenance)
	})
	if err == nil {
		return
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		commandErrorCounter.WithLabelValues(h.Name(), "user").Inc()
		r.post(ctx, inv.Backend, inv.ChannelID, userErr.Message)
		return
	}

	commandErrorCounter.WithLabelValues(h.Name(), "internal").Inc()
	r.logger.Error("command failed",
		"handler", h.Name(),
		"command", command,
		"channel", inv.ChannelID,
		"user", inv.UserID,
		"error", err)
}

// guarded runs fn with panic recovery so a programming error inside a
// command is logged and absorbed instead of crashing the process.
func (r *Registry) guarded(ctx context.Context, h *Handler, command string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			commandErrorCounter.WithLabelValues(h.Name(), "internal").Inc()
			r.logger.Error("command panicked",
				"handler", h.Name(),
				"command", command,
				"panic", rec,
				"stack", string(debug.Stack()))
			err = nil
		}
	}()
	return fn()
}

func (r *Registry) post(ctx context.Context, backend chat.Backend, channelID, text string) {
	if err := backend.PostMessage(ctx, channelID, text); err != nil {
		r.logger.Error("posting reply failed", "channel", channelID, "error", err)
	}
}
