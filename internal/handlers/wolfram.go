package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
)

// wolframEndpoint is the short-answer API: plain text in, plain text out.
const wolframEndpoint = "https://api.wolframalpha.com/v1/result"

type wolframCommands struct {
	conf   *config.Store
	client *http.Client
	logger *slog.Logger
}

// NewWolframHandler builds the wolfram namespace.
func NewWolframHandler(deps *Deps) *commands.Handler {
	w := &wolframCommands{
		conf:   deps.Conf,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: deps.logger("wolfram"),
	}

	h := commands.NewHandler("wolfram")
	h.Register("ask", &commands.Descriptor{
		Command:     commands.CommandFunc(w.ask),
		Description: "Ask wolfram alpha a question",
		Args:        []string{"question"},
	})
	return h
}

func (w *wolframCommands) ask(ctx context.Context, inv *commands.Invocation) error {
	appID := w.conf.GetString(config.KeyWolframAppID)
	if appID == "" {
		return commands.Errorf("It seems you have no valid wolfram alpha app id. Contact an admin about this...")
	}

	question := strings.Join(inv.Args, " ")
	query := url.Values{}
	query.Set("appid", appID)
	query.Set("i", question)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wolframEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build wolfram request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("wolfram request failed", "error", err)
		return commands.Errorf("Wolfram Alpha doesn't seem to understand you :(")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		w.logger.Error("reading wolfram response failed", "error", err)
		return commands.Errorf("Wolfram Alpha doesn't seem to understand you :(")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return inv.Backend.PostMessage(ctx, inv.ChannelID, string(body))
	case http.StatusForbidden:
		return commands.Errorf("Wolfram Alpha app id doesn't seem to be correct (or api is choking)...")
	case http.StatusNotImplemented:
		return commands.Errorf("Wolfram Alpha doesn't seem to know the answer for this :(")
	default:
		w.logger.Error("unexpected wolfram response", "status", resp.StatusCode)
		return commands.Errorf("Wolfram Alpha doesn't seem to understand you :(")
	}
}
