package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/config"
)

const (
	ctftimeStatsURL = "https://ctftime.org/stats/%d?page=%d"
	maxRankPages    = 100
)

// standing is one row of the ctftime scoreboard table.
type standing struct {
	Position int
	Team     string
	Points   float64
}

// RankWatcher polls the ctftime scoreboard for the team's position and
// announces movement in the configured channel. The last seen position is
// kept in a state file so restarts stay quiet.
type RankWatcher struct {
	backend   chat.Backend
	team      string
	channelID string
	stateFile string
	client    *http.Client
	logger    *slog.Logger
	year      func() int
}

// NewRankWatcher returns nil when no team or channel is configured.
func NewRankWatcher(backend chat.Backend, conf *config.Store, logger *slog.Logger) *RankWatcher {
	team := conf.GetString(config.KeyRankTeamName)
	channelID := conf.GetString(config.KeyRankChannel)
	if team == "" || channelID == "" {
		return nil
	}
	stateFile := conf.GetString(config.KeyRankStateFile)
	if stateFile == "" {
		stateFile = "rank-position.txt"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RankWatcher{
		backend:   backend,
		team:      team,
		channelID: channelID,
		stateFile: stateFile,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.With("component", "rank"),
		year:      func() int { return time.Now().Year() },
	}
}

// Check runs one poll cycle. Errors are logged, never fatal; the next cycle
// retries.
func (w *RankWatcher) Check(ctx context.Context) {
	found, err := w.findTeam(ctx)
	if err != nil {
		w.logger.Error("rank lookup failed", "team", w.team, "error", err)
		return
	}
	if found == nil {
		w.logger.Error("team not found on scoreboard", "team", w.team, "pages", maxRankPages)
		return
	}

	previous := w.loadPosition()
	if err := w.storePosition(found.Position); err != nil {
		w.logger.Error("persisting rank failed", "error", err)
	}
	if previous == found.Position {
		w.logger.Info("rank unchanged", "position", found.Position)
		return
	}

	message := fmt.Sprintf(
		"*------- :rotating_light: CTFTIME ALERT :rotating_light: -------*\n\n<!channel>\n"+
			"*We moved from position %d to %d in the world!*\n\n*We have %.2f points*\n\n"+
			"https://ctftime.org/stats/%d",
		previous, found.Position, found.Points, w.year())
	if err := w.backend.PostMessage(ctx, w.channelID, message); err != nil {
		w.logger.Error("posting rank update failed", "error", err)
		return
	}
	w.logger.Info("rank update posted", "from", previous, "to", found.Position)
}

func (w *RankWatcher) findTeam(ctx context.Context) (*standing, error) {
	year := w.year()
	for page := 1; page <= maxRankPages; page++ {
		standings, err := w.fetchPage(ctx, year, page)
		if err != nil {
			return nil, err
		}
		if len(standings) == 0 {
			return nil, nil
		}
		for i := range standings {
			if standings[i].Team == w.team {
				return &standings[i], nil
			}
		}
	}
	return nil, nil
}

func (w *RankWatcher) fetchPage(ctx context.Context, year, page int) ([]standing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(ctftimeStatsURL, year, page), nil)
	if err != nil {
		return nil, err
	}
	// ctftime answers 403 to the default Go user agent.
	req.Header.Set("User-Agent", "brigade rank watcher")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ctftime page %d: status %d", page, resp.StatusCode)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse ctftime page %d: %w", page, err)
	}
	return parseStandings(doc), nil
}

// parseStandings collects every table row that looks like
// position / team / points. Header rows and decoration fall out naturally.
func parseStandings(doc *html.Node) []standing {
	var standings []standing
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			if row, ok := parseRow(n); ok {
				standings = append(standings, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return standings
}

func parseRow(tr *html.Node) (standing, bool) {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	if len(cells) < 3 {
		return standing{}, false
	}
	position, err := strconv.Atoi(cells[0])
	if err != nil {
		return standing{}, false
	}
	points, err := strconv.ParseFloat(cells[2], 64)
	if err != nil {
		return standing{}, false
	}
	return standing{Position: position, Team: cells[1], Points: points}, true
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func (w *RankWatcher) loadPosition() int {
	data, err := os.ReadFile(w.stateFile)
	if err != nil {
		return -1
	}
	position, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1
	}
	return position
}

func (w *RankWatcher) storePosition(position int) error {
	return os.WriteFile(w.stateFile, []byte(strconv.Itoa(position)), 0o644)
}
