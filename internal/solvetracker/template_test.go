package solvetracker

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ctfcrew/brigade/pkg/models"
)

func sampleCTF() *models.CTF {
	ctf := models.NewCTF("C_CTF", "democtf", "Demo CTF")

	solved := models.NewChallenge("C_1", "C_CTF", "pwn200", "pwn")
	solved.MarkAsSolved([]string{"alice", "bob"}, time.Unix(1700000000, 0))
	ctf.AddChallenge(solved)

	unsolved := models.NewChallenge("C_2", "C_CTF", "web300", "")
	ctf.AddChallenge(unsolved)
	return ctf
}

func TestResolvePost(t *testing.T) {
	post := ResolvePost(
		sampleCTF(),
		"Demo CTF wrapup",
		"# {title}\nCTF {name} as of {date_now}\n{challenges}",
		"- {name_with_category} solved by {solver} at {solve_date} [{category}]\n",
		time.Unix(1710000000, 0),
	)

	if !strings.Contains(post, "# Demo CTF wrapup") {
		t.Errorf("title not resolved:\n%s", post)
	}
	if !strings.Contains(post, "CTF democtf") {
		t.Errorf("name not resolved:\n%s", post)
	}
	if !strings.Contains(post, "pwn200 (pwn) solved by alice, bob") {
		t.Errorf("challenge line not resolved:\n%s", post)
	}
	if strings.Contains(post, "web300") {
		t.Errorf("unsolved challenges must not appear:\n%s", post)
	}
	if strings.Contains(post, "{") {
		t.Errorf("unresolved placeholder remains:\n%s", post)
	}
}

func TestResolvePostNoCategory(t *testing.T) {
	ctf := models.NewCTF("C_CTF", "democtf", "Demo CTF")
	chal := models.NewChallenge("C_1", "C_CTF", "misc50", "")
	chal.MarkAsSolved([]string{"carol"}, time.Unix(1700000000, 0))
	ctf.AddChallenge(chal)

	post := ResolvePost(ctf, "t", "{challenges}", "{name_with_category}|{category}", time.Now())
	if post != "misc50|" {
		t.Errorf("category-less rendering = %q", post)
	}
}

func TestRenderFrontMatter(t *testing.T) {
	front, err := RenderFrontMatter(sampleCTF(), "Demo CTF wrapup", time.Unix(1710000000, 0))
	if err != nil {
		t.Fatalf("RenderFrontMatter: %v", err)
	}
	if !strings.HasPrefix(front, "---\n") || !strings.HasSuffix(front, "---\n") {
		t.Errorf("front matter not fenced:\n%s", front)
	}
	if !strings.Contains(front, "title: Demo CTF wrapup") {
		t.Errorf("title missing:\n%s", front)
	}
	if !strings.Contains(front, "democtf") {
		t.Errorf("ctf category missing:\n%s", front)
	}
}

func TestResolveStats(t *testing.T) {
	out, err := ResolveStats(sampleCTF())
	if err != nil {
		t.Fatalf("ResolveStats: %v", err)
	}

	var stats struct {
		Name       string `json:"name"`
		Solved     int    `json:"solved"`
		Total      int    `json:"total"`
		Challenges []struct {
			Name   string   `json:"name"`
			Solved bool     `json:"solved"`
			Solver []string `json:"solver"`
		} `json:"challenges"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats not valid JSON: %v\n%s", err, out)
	}
	if stats.Name != "democtf" || stats.Solved != 1 || stats.Total != 2 {
		t.Errorf("stats header = %+v", stats)
	}
	if len(stats.Challenges) != 2 || !stats.Challenges[0].Solved || stats.Challenges[0].Solver[0] != "alice" {
		t.Errorf("challenge stats = %+v", stats.Challenges)
	}
}
