// Package solvetracker publishes CTF solve summaries to a Jekyll-style git
// repository: one markdown post per CTF rendered from templates, plus a
// per-CTF stats JSON document, committed and pushed to the configured remote.
package solvetracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ctfcrew/brigade/pkg/models"
)

// frontMatter is the YAML document at the head of a generated post.
type frontMatter struct {
	Layout     string   `yaml:"layout"`
	Title      string   `yaml:"title"`
	Date       string   `yaml:"date"`
	Categories []string `yaml:"categories"`
}

// ResolvePost renders the post body for a CTF. Challenge placeholders are
// resolved per solved challenge from challengeTemplate, then the joined
// result replaces {challenges} in postTemplate alongside the CTF-level
// placeholders.
func ResolvePost(ctf *models.CTF, title, postTemplate, challengeTemplate string, now time.Time) string {
	var challenges strings.Builder
	for _, challenge := range ctf.Challenges {
		if !challenge.IsSolved {
			continue
		}
		category := challenge.Category
		nameWithCategory := challenge.Name
		if category != "" {
			nameWithCategory = fmt.Sprintf("%s (%s)", challenge.Name, category)
		}
		replacer := strings.NewReplacer(
			"{name}", challenge.Name,
			"{solver}", strings.Join(challenge.Solver, ", "),
			"{solve_date}", time.Unix(challenge.SolveDate, 0).Format(time.ANSIC),
			"{category}", category,
			"{name_with_category}", nameWithCategory,
		)
		challenges.WriteString(replacer.Replace(challengeTemplate))
	}

	replacer := strings.NewReplacer(
		"{title}", title,
		"{name}", ctf.Name,
		"{date_now}", now.Format(time.ANSIC),
		"{challenges}", challenges.String(),
	)
	return replacer.Replace(postTemplate)
}

// RenderFrontMatter produces the YAML header for a post.
func RenderFrontMatter(ctf *models.CTF, title string, now time.Time) (string, error) {
	fm := frontMatter{
		Layout:     "post",
		Title:      title,
		Date:       now.Format("2006-01-02 15:04:05 -0700"),
		Categories: []string{"solves", ctf.Name},
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	return "---\n" + string(data) + "---\n", nil
}

// challengeStats is the per-challenge record in the stats document.
type challengeStats struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Solved    bool     `json:"solved"`
	Solver    []string `json:"solver,omitempty"`
	SolveDate int64    `json:"solve_date,omitempty"`
}

// ctfStats is the stats JSON document for one CTF.
type ctfStats struct {
	Name       string           `json:"name"`
	LongName   string           `json:"long_name"`
	Finished   bool             `json:"finished"`
	FinishedOn int64            `json:"finished_on,omitempty"`
	Solved     int              `json:"solved"`
	Total      int              `json:"total"`
	Challenges []challengeStats `json:"challenges"`
}

// ResolveStats renders the stats JSON for a CTF.
func ResolveStats(ctf *models.CTF) (string, error) {
	stats := ctfStats{
		Name:       ctf.Name,
		LongName:   ctf.LongName,
		Finished:   ctf.Finished,
		FinishedOn: ctf.FinishedOn,
		Total:      len(ctf.Challenges),
		Challenges: make([]challengeStats, 0, len(ctf.Challenges)),
	}
	for _, challenge := range ctf.Challenges {
		if challenge.IsSolved {
			stats.Solved++
		}
		stats.Challenges = append(stats.Challenges, challengeStats{
			Name:      challenge.Name,
			Category:  challenge.Category,
			Solved:    challenge.IsSolved,
			Solver:    challenge.Solver,
			SolveDate: challenge.SolveDate,
		})
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}
	return string(data) + "\n", nil
}
