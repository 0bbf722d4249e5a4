package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/ctfcrew/brigade/internal/chat"
	"github.com/ctfcrew/brigade/internal/commands"
	"github.com/ctfcrew/brigade/internal/config"
	"github.com/ctfcrew/brigade/internal/solvetracker"
	"github.com/ctfcrew/brigade/internal/store"
	"github.com/ctfcrew/brigade/pkg/models"
)

// statusMarker prefixes every CTF status board so the refresh reactions can
// tell a board apart from an ordinary message.
const statusMarker = "*====="

var errNotCTFChannel = &commands.UserError{Message: "Command failed. You are not in a CTF channel."}

// ctfCommands carries the collaborators shared by every command in the ctf
// namespace.
type ctfCommands struct {
	conf    *config.Store
	ctfs    *store.Store[*models.CTF]
	tracker *solvetracker.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// NewCTFHandler builds the ctf namespace: event and challenge lifecycle,
// solve tracking, credentials, tags, and the purpose-based reload.
func NewCTFHandler(deps *Deps) *commands.Handler {
	c := &ctfCommands{
		conf:    deps.Conf,
		ctfs:    deps.CTFs,
		tracker: deps.Tracker,
		logger:  deps.logger("ctf"),
		now:     time.Now,
	}

	h := commands.NewHandler("ctf")
	h.Register("addctf", &commands.Descriptor{
		Command:     commands.CommandFunc(c.addCTF),
		Description: "Create a new CTF and its channel",
		Args:        []string{"ctf_name", "long_name"},
	})
	h.Register("addchallenge", &commands.Descriptor{
		Command:     commands.CommandFunc(c.addChallenge),
		Description: "Add a challenge to the current CTF",
		Args:        []string{"challenge_name"},
		OptArgs:     []string{"category"},
	})
	h.Register("workon", &commands.Descriptor{
		Command:     commands.CommandFunc(c.workon),
		Description: "Mark yourself as working on a challenge",
		OptArgs:     []string{"challenge_name"},
	})
	h.Register("solve", &commands.Descriptor{
		Command:     commands.CommandFunc(c.solve),
		Description: "Mark a challenge as solved",
		OptArgs:     []string{"challenge_name", "support_members"},
	})
	h.Register("unsolve", &commands.Descriptor{
		Command:     commands.CommandFunc(c.unsolve),
		Description: "Remove solve state from a challenge",
		OptArgs:     []string{"challenge_name"},
	})
	h.Register("status", &commands.Descriptor{
		Command:     commands.CommandFunc(c.status),
		Description: "Show the status of all ongoing CTFs",
		OptArgs:     []string{"-v"},
	})
	h.Register("renamechallenge", &commands.Descriptor{
		Command:     commands.CommandFunc(c.renameChallenge),
		Description: "Rename a challenge of the current CTF",
		Args:        []string{"old_name", "new_name"},
	})
	h.Register("renamectf", &commands.Descriptor{
		Command:     commands.CommandFunc(c.renameCTF),
		Description: "Rename a CTF",
		Args:        []string{"old_name", "new_name"},
	})
	h.Register("addcreds", &commands.Descriptor{
		Command:     commands.CommandFunc(c.addCreds),
		Description: "Store shared credentials for the current CTF",
		Args:        []string{"user", "password"},
		OptArgs:     []string{"url"},
	})
	h.Register("showcreds", &commands.Descriptor{
		Command:     commands.CommandFunc(c.showCreds),
		Description: "Show the shared credentials of the current CTF",
	})
	h.Register("tag", &commands.Descriptor{
		Command:     commands.CommandFunc(c.tag),
		Description: "Tag the current challenge",
		Args:        []string{"tag"},
	})
	h.Register("removetag", &commands.Descriptor{
		Command:     commands.CommandFunc(c.removeTag),
		Description: "Remove a tag from the current challenge",
		Args:        []string{"tag"},
	})
	h.Register("removechallenge", &commands.Descriptor{
		Command:     commands.CommandFunc(c.removeChallenge),
		Description: "Remove and archive a challenge",
		OptArgs:     []string{"challenge_name"},
		AdminOnly:   true,
	})
	h.Register("endctf", &commands.Descriptor{
		Command:     commands.CommandFunc(c.endCTF),
		Description: "Mark the current CTF as finished",
		AdminOnly:   true,
	})
	h.Register("archivectf", &commands.Descriptor{
		Command:     commands.CommandFunc(c.archiveCTF),
		Description: "Archive the current CTF and its challenge channels",
		AdminOnly:   true,
	})
	h.Register("reload", &commands.Descriptor{
		Command:     commands.CommandFunc(c.reload),
		Description: "Rebuild the CTF database from channel purposes",
		AdminOnly:   true,
	})
	h.Register("postsolves", &commands.Descriptor{
		Command:     commands.CommandFunc(c.postSolves),
		Description: "Push the current CTF's solves to the solve tracker",
		OptArgs:     []string{"title"},
		AdminOnly:   true,
	})
	h.Register("roll", &commands.Descriptor{
		Command:     commands.CommandFunc(c.roll),
		Description: "Roll the dice",
	})

	h.Alias("working", "workon")
	h.Alias("done", "solve")
	h.Alias("addchall", "addchallenge")

	h.RegisterReaction("arrows_clockwise", &commands.Descriptor{
		Command: commands.CommandFunc(c.refreshStatus(true)),
	})
	h.RegisterReaction("arrows_counterclockwise", &commands.Descriptor{
		Command: commands.CommandFunc(c.refreshStatus(false)),
	})

	return h
}

// located resolves the invoking channel against the CTF database: the channel
// is either a CTF channel, a challenge channel, or neither.
type located struct {
	ctf       *models.CTF
	challenge *models.Challenge
}

// locate finds the CTF (and challenge, if any) the given channel belongs to
// inside an already-loaded snapshot.
func locate(ctfs map[string]*models.CTF, channelID string) *located {
	if ctf, ok := ctfs[channelID]; ok {
		return &located{ctf: ctf}
	}
	for _, ctf := range ctfs {
		if chal := ctf.FindChallengeByChannel(channelID); chal != nil {
			return &located{ctf: ctf, challenge: chal}
		}
	}
	return nil
}

// pickChallenge resolves which challenge a command targets: the explicit name
// argument if given, otherwise the challenge owning the invoking channel.
func (l *located) pickChallenge(name string) (*models.Challenge, error) {
	if name != "" {
		chal := l.ctf.FindChallengeByName(name)
		if chal == nil {
			return nil, commands.Errorf("This challenge does not exist.")
		}
		return chal, nil
	}
	if l.challenge == nil {
		return nil, commands.Errorf("Please use the challenge channel or specify the challenge name.")
	}
	return l.challenge, nil
}

func (c *ctfCommands) addCTF(ctx context.Context, inv *commands.Invocation) error {
	name := strings.ToLower(inv.Args[0])
	longName := inv.Args[1]

	if !models.ValidCTFName(name) {
		return commands.Errorf(
			"Command failed. Invalid CTF name. Max length is %d characters and only lowercase letters, numbers, - and _ are allowed.",
			models.MaxCTFNameLength)
	}

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	for _, ctf := range snapshot {
		if ctf.Name == name && !ctf.Finished {
			return commands.Errorf("A CTF with name *%s* already exists.", name)
		}
	}

	channel, err := inv.Backend.CreateChannel(ctx, name)
	if err != nil {
		c.logger.Error("creating ctf channel failed", "name", name, "error", err)
		return commands.Errorf("Command failed. Channel *%s* could not be created.", name)
	}

	ctf := models.NewCTF(channel.ID, name, longName)
	if err := c.ctfs.Transaction(func(entries map[string]*models.CTF) error {
		entries[ctf.ChannelID] = ctf
		return nil
	}); err != nil {
		return err
	}

	c.inviteUsers(ctx, inv.Backend, channel.ID, append(c.conf.GetStringSlice(config.KeyAutoInvite), inv.UserID))
	if err := setCTFPurpose(ctx, inv.Backend, ctf); err != nil {
		c.logger.Error("setting ctf purpose failed", "ctf", name, "error", err)
	}

	return inv.Backend.PostMessage(ctx, inv.ChannelID, fmt.Sprintf("Created channel #%s", name))
}

func (c *ctfCommands) addChallenge(ctx context.Context, inv *commands.Invocation) error {
	name := strings.ToLower(inv.Args[0])
	category := ""
	if len(inv.Args) > 1 {
		category = inv.Args[1]
	}

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	ctf := loc.ctf
	if ctf.FindChallengeByName(name) != nil {
		return commands.Errorf("A challenge with name *%s* already exists in this CTF.", name)
	}

	channelName := fmt.Sprintf("%s-%s", ctf.Name, name)
	channel, err := inv.Backend.CreateChannel(ctx, channelName)
	if err != nil {
		c.logger.Error("creating challenge channel failed", "name", channelName, "error", err)
		return commands.Errorf("Command failed. Channel *%s* could not be created.", channelName)
	}

	chal := models.NewChallenge(channel.ID, ctf.ChannelID, name, category)
	if _, err := c.ctfs.Update(ctf.ChannelID, func(entry *models.CTF) {
		entry.AddChallenge(chal)
	}); err != nil {
		return err
	}

	c.inviteUsers(ctx, inv.Backend, channel.ID, []string{inv.UserID})
	if err := setChallengePurpose(ctx, inv.Backend, chal); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", name, "error", err)
	}

	return inv.Backend.PostMessage(ctx, ctf.ChannelID,
		fmt.Sprintf("New challenge *%s* created in channel <#%s>", name, channel.ID))
}

func (c *ctfCommands) workon(ctx context.Context, inv *commands.Invocation) error {
	name := ""
	if len(inv.Args) > 0 {
		name = strings.ToLower(inv.Args[0])
	}

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	chal, err := loc.pickChallenge(name)
	if err != nil {
		return err
	}
	if chal.IsSolved {
		return commands.Errorf("This challenge is already solved.")
	}

	if _, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		if target := entry.FindChallengeByChannel(chal.ChannelID); target != nil {
			target.AddPlayer(inv.UserID)
		}
	}); err != nil {
		return err
	}
	chal.AddPlayer(inv.UserID)

	if err := inv.Backend.InviteUser(ctx, chal.ChannelID, inv.UserID); err != nil {
		c.logger.Debug("inviting player failed", "challenge", chal.Name, "user", inv.UserID, "error", err)
	}
	if err := setChallengePurpose(ctx, inv.Backend, chal); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", chal.Name, "error", err)
	}
	return nil
}

func (c *ctfCommands) solve(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}

	name := ""
	supporters := inv.Args
	// In a challenge channel every argument is a supporting member; in the
	// CTF channel the first argument names the challenge.
	if loc.challenge == nil && len(inv.Args) > 0 {
		name = strings.ToLower(inv.Args[0])
		supporters = inv.Args[1:]
	}
	chal, err := loc.pickChallenge(name)
	if err != nil {
		return err
	}
	if chal.IsSolved {
		return commands.Errorf("This challenge has already been solved.")
	}

	solvers := []string{c.displayName(ctx, inv.Backend, inv.UserID)}
	for _, supporter := range supporters {
		solvers = append(solvers, c.displayName(ctx, inv.Backend, parseUserRef(supporter)))
	}

	if _, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		if target := entry.FindChallengeByChannel(chal.ChannelID); target != nil {
			target.MarkAsSolved(solvers, c.now())
		}
	}); err != nil {
		return err
	}
	chal.MarkAsSolved(solvers, c.now())

	if err := setChallengePurpose(ctx, inv.Backend, chal); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", chal.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, loc.ctf.ChannelID,
		fmt.Sprintf("%s has solved the \"%s\" challenge :tada:", strings.Join(solvers, ", "), chal.Name))
}

func (c *ctfCommands) unsolve(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	name := ""
	if len(inv.Args) > 0 {
		name = strings.ToLower(inv.Args[0])
	}
	chal, err := loc.pickChallenge(name)
	if err != nil {
		return err
	}
	if !chal.IsSolved {
		return commands.Errorf("This challenge isn't solved.")
	}

	if _, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		if target := entry.FindChallengeByChannel(chal.ChannelID); target != nil {
			target.UnmarkAsSolved()
		}
	}); err != nil {
		return err
	}
	chal.UnmarkAsSolved()

	if err := setChallengePurpose(ctx, inv.Backend, chal); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", chal.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, loc.ctf.ChannelID,
		fmt.Sprintf("Challenge *%s* is marked as unsolved again.", chal.Name))
}

func (c *ctfCommands) status(ctx context.Context, inv *commands.Invocation) error {
	verbose := len(inv.Args) > 0 && inv.Args[0] == "-v"
	board, err := c.renderStatus(verbose)
	if err != nil {
		return err
	}
	reaction := "arrows_counterclockwise"
	if verbose {
		reaction = "arrows_clockwise"
	}
	return inv.Backend.PostMessageWithReaction(ctx, inv.ChannelID, board, reaction)
}

// refreshStatus returns the reaction command that re-renders an existing
// status board in place. A reaction on any other message is ignored.
func (c *ctfCommands) refreshStatus(verbose bool) commands.CommandFunc {
	return func(ctx context.Context, inv *commands.Invocation) error {
		text, err := inv.Backend.GetMessage(ctx, inv.ChannelID, inv.Timestamp)
		if err != nil || !strings.HasPrefix(text, statusMarker) {
			return nil
		}
		board, err := c.renderStatus(verbose)
		if err != nil {
			return err
		}
		return inv.Backend.UpdateMessage(ctx, inv.ChannelID, inv.Timestamp, board)
	}
}

// renderStatus builds the status board over every unfinished CTF. The short
// form shows per-CTF solve counts; the verbose form lists each challenge with
// its solvers, workers, and tags.
func (c *ctfCommands) renderStatus(verbose bool) (string, error) {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return "", err
	}

	ctfs := make([]*models.CTF, 0, len(snapshot))
	for _, ctf := range snapshot {
		if !ctf.Finished {
			ctfs = append(ctfs, ctf)
		}
	}
	sort.Slice(ctfs, func(i, j int) bool { return ctfs[i].Name < ctfs[j].Name })

	if len(ctfs) == 0 {
		return statusMarker + " No active CTFs =====*", nil
	}

	var b strings.Builder
	for _, ctf := range ctfs {
		solved := 0
		for _, chal := range ctf.Challenges {
			if chal.IsSolved {
				solved++
			}
		}
		fmt.Fprintf(&b, "%s #%s (%s) [%d/%d solved] =====*\n",
			statusMarker, ctf.Name, ctf.LongName, solved, len(ctf.Challenges))

		if !verbose {
			continue
		}
		for _, chal := range ctf.Challenges {
			mark := ":white_square:"
			if chal.IsSolved {
				mark = ":white_check_mark:"
			}
			fmt.Fprintf(&b, "%s *%s*", mark, chal.Name)
			if chal.Category != "" {
				fmt.Fprintf(&b, " (%s)", chal.Category)
			}
			if len(chal.Tags) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(chal.Tags, ", "))
			}
			if chal.IsSolved {
				fmt.Fprintf(&b, " - solved by %s", strings.Join(chal.Solver, ", "))
			} else if len(chal.Players) > 0 {
				fmt.Fprintf(&b, " - %d working", len(chal.Players))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *ctfCommands) renameChallenge(ctx context.Context, inv *commands.Invocation) error {
	oldName := strings.ToLower(inv.Args[0])
	newName := strings.ToLower(inv.Args[1])

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	ctf := loc.ctf
	chal := ctf.FindChallengeByName(oldName)
	if chal == nil {
		return commands.Errorf("This challenge does not exist.")
	}
	if ctf.FindChallengeByName(newName) != nil {
		return commands.Errorf("A challenge with name *%s* already exists in this CTF.", newName)
	}

	if _, err := inv.Backend.RenameChannel(ctx, chal.ChannelID, fmt.Sprintf("%s-%s", ctf.Name, newName)); err != nil {
		c.logger.Error("renaming challenge channel failed", "challenge", oldName, "error", err)
		return commands.Errorf("Command failed. Channel rename didn't work.")
	}

	if _, err := c.ctfs.Update(ctf.ChannelID, func(entry *models.CTF) {
		if target := entry.FindChallengeByChannel(chal.ChannelID); target != nil {
			target.Name = newName
		}
	}); err != nil {
		return err
	}
	chal.Name = newName

	if err := setChallengePurpose(ctx, inv.Backend, chal); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", newName, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("Challenge *%s* renamed to *%s*.", oldName, newName))
}

func (c *ctfCommands) renameCTF(ctx context.Context, inv *commands.Invocation) error {
	oldName := strings.ToLower(inv.Args[0])
	newName := strings.ToLower(inv.Args[1])

	if !models.ValidCTFName(newName) {
		return commands.Errorf(
			"Command failed. Invalid CTF name. Max length is %d characters and only lowercase letters, numbers, - and _ are allowed.",
			models.MaxCTFNameLength)
	}

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	var ctf *models.CTF
	for _, entry := range snapshot {
		if entry.Name == oldName {
			ctf = entry
			break
		}
	}
	if ctf == nil {
		return commands.Errorf("There is no CTF with name *%s*.", oldName)
	}

	if _, err := inv.Backend.RenameChannel(ctx, ctf.ChannelID, newName); err != nil {
		c.logger.Error("renaming ctf channel failed", "ctf", oldName, "error", err)
		return commands.Errorf("Command failed. Channel rename didn't work.")
	}
	// Challenge channels carry the CTF name as their prefix.
	for _, chal := range ctf.Challenges {
		if _, err := inv.Backend.RenameChannel(ctx, chal.ChannelID, fmt.Sprintf("%s-%s", newName, chal.Name)); err != nil {
			c.logger.Error("renaming challenge channel failed", "challenge", chal.Name, "error", err)
		}
	}

	updated, err := c.ctfs.Update(ctf.ChannelID, func(entry *models.CTF) {
		entry.Name = newName
	})
	if err != nil {
		return err
	}

	if err := setCTFPurpose(ctx, inv.Backend, updated); err != nil {
		c.logger.Error("setting ctf purpose failed", "ctf", newName, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("CTF *%s* renamed to *%s*.", oldName, newName))
}

func (c *ctfCommands) addCreds(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}

	url := ""
	if len(inv.Args) > 2 {
		url = inv.Args[2]
	}
	updated, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		entry.CredUser = inv.Args[0]
		entry.CredPW = inv.Args[1]
		entry.CredURL = url
	})
	if err != nil {
		return err
	}

	if err := setCTFPurpose(ctx, inv.Backend, updated); err != nil {
		c.logger.Error("setting ctf purpose failed", "ctf", updated.Name, "error", err)
	}
	if err := inv.Backend.SetTopic(ctx, updated.ChannelID, renderCreds(updated)); err != nil {
		c.logger.Debug("setting creds topic failed", "ctf", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, "Credentials for this CTF saved.")
}

func (c *ctfCommands) showCreds(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	if loc.ctf.CredUser == "" && loc.ctf.CredPW == "" {
		return commands.Errorf("No credentials provided for this CTF.")
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, renderCreds(loc.ctf))
}

func renderCreds(ctf *models.CTF) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credentials for CTF *%s*\n", ctf.Name)
	fmt.Fprintf(&b, "User : `%s`\n", ctf.CredUser)
	fmt.Fprintf(&b, "Password : `%s`", ctf.CredPW)
	if ctf.CredURL != "" {
		fmt.Fprintf(&b, "\nURL : %s", ctf.CredURL)
	}
	return b.String()
}

func (c *ctfCommands) tag(ctx context.Context, inv *commands.Invocation) error {
	return c.mutateTags(ctx, inv, func(chal *models.Challenge, tag string) (bool, string) {
		return chal.AddTag(tag), fmt.Sprintf("Tag *%s* added.", tag)
	})
}

func (c *ctfCommands) removeTag(ctx context.Context, inv *commands.Invocation) error {
	return c.mutateTags(ctx, inv, func(chal *models.Challenge, tag string) (bool, string) {
		return chal.RemoveTag(tag), fmt.Sprintf("Tag *%s* removed.", tag)
	})
}

// mutateTags runs a tag mutation inside the current challenge channel. The
// mutation reports whether anything changed; unchanged tags get a neutral
// reply instead of an error.
func (c *ctfCommands) mutateTags(ctx context.Context, inv *commands.Invocation,
	mutate func(chal *models.Challenge, tag string) (bool, string)) error {

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil || loc.challenge == nil {
		return commands.Errorf("Command failed. You are not in a challenge channel.")
	}

	var replies []string
	if _, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		target := entry.FindChallengeByChannel(loc.challenge.ChannelID)
		if target == nil {
			return
		}
		for _, tag := range inv.Args {
			changed, reply := mutate(target, strings.ToLower(tag))
			if !changed {
				reply = fmt.Sprintf("Tag *%s* unchanged.", strings.ToLower(tag))
			}
			replies = append(replies, reply)
		}
		*loc.challenge = *target
	}); err != nil {
		return err
	}

	if err := setChallengePurpose(ctx, inv.Backend, loc.challenge); err != nil {
		c.logger.Error("setting challenge purpose failed", "challenge", loc.challenge.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID, strings.Join(replies, "\n"))
}

func (c *ctfCommands) removeChallenge(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	name := ""
	if len(inv.Args) > 0 {
		name = strings.ToLower(inv.Args[0])
	}
	chal, err := loc.pickChallenge(name)
	if err != nil {
		return err
	}

	if _, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		entry.RemoveChallenge(chal.ChannelID)
	}); err != nil {
		return err
	}

	if err := inv.Backend.ArchiveChannel(ctx, chal.ChannelID); err != nil {
		c.logger.Error("archiving challenge channel failed", "challenge", chal.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, loc.ctf.ChannelID,
		fmt.Sprintf("Challenge *%s* was removed.", chal.Name))
}

func (c *ctfCommands) endCTF(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}
	if loc.ctf.Finished {
		return commands.Errorf("CTF *%s* has already ended.", loc.ctf.Name)
	}

	updated, err := c.ctfs.Update(loc.ctf.ChannelID, func(entry *models.CTF) {
		entry.MarkFinished(c.now())
	})
	if err != nil {
		return err
	}

	if err := setCTFPurpose(ctx, inv.Backend, updated); err != nil {
		c.logger.Error("setting ctf purpose failed", "ctf", updated.Name, "error", err)
	}
	return inv.Backend.PostMessage(ctx, updated.ChannelID,
		fmt.Sprintf("CTF *%s* has ended. Well done everyone!", updated.Name))
}

func (c *ctfCommands) archiveCTF(ctx context.Context, inv *commands.Invocation) error {
	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil || loc.challenge != nil {
		return errNotCTFChannel
	}
	ctf := loc.ctf

	for _, chal := range ctf.Challenges {
		if err := inv.Backend.ArchiveChannel(ctx, chal.ChannelID); err != nil {
			c.logger.Error("archiving challenge channel failed", "challenge", chal.Name, "error", err)
		}
	}

	if err := c.ctfs.Transaction(func(entries map[string]*models.CTF) error {
		delete(entries, ctf.ChannelID)
		return nil
	}); err != nil {
		return err
	}

	if err := inv.Backend.PostMessage(ctx, ctf.ChannelID,
		fmt.Sprintf("CTF *%s* archived. This channel is going away now.", ctf.Name)); err != nil {
		c.logger.Debug("posting archive notice failed", "ctf", ctf.Name, "error", err)
	}
	if err := inv.Backend.ArchiveChannel(ctx, ctf.ChannelID); err != nil {
		c.logger.Error("archiving ctf channel failed", "ctf", ctf.Name, "error", err)
		return commands.Errorf("Command failed. Channel could not be archived.")
	}
	return nil
}

// reload rebuilds the CTF database from channel purposes. Channels with
// missing or malformed purpose documents are skipped with a log line; the
// scan never aborts on a single bad channel.
func (c *ctfCommands) reload(ctx context.Context, inv *commands.Invocation) error {
	channels, err := inv.Backend.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	rebuilt := map[string]*models.CTF{}
	type pendingChallenge struct {
		channelID string
		doc       *challengePurpose
	}
	var challenges []pendingChallenge

	for _, channel := range channels {
		if channel.IsArchived || channel.Purpose == "" {
			continue
		}
		doc, kind := parsePurpose(channel.Purpose)
		switch kind {
		case purposeTypeCTF:
			p := doc.(*ctfPurpose)
			ctf := models.NewCTF(channel.ID, p.Name, p.LongName)
			ctf.CredUser = p.CredUser
			ctf.CredPW = p.CredPW
			ctf.CredURL = p.CredURL
			ctf.Finished = p.Finished
			ctf.FinishedOn = p.FinishedOn
			rebuilt[channel.ID] = ctf
		case purposeTypeChallenge:
			challenges = append(challenges, pendingChallenge{channelID: channel.ID, doc: doc.(*challengePurpose)})
		case "":
			if kind == "" && looksLikeBotPurpose(channel.Purpose) {
				c.logger.Warn("skipping malformed channel purpose", "channel", channel.Name)
			}
		}
	}

	attached := 0
	for _, pending := range challenges {
		ctf, ok := rebuilt[pending.doc.CTF]
		if !ok {
			c.logger.Warn("challenge purpose references unknown ctf",
				"channel", pending.channelID, "ctf", pending.doc.CTF)
			continue
		}
		chal := models.NewChallenge(pending.channelID, pending.doc.CTF, pending.doc.Name, pending.doc.Category)
		chal.IsSolved = pending.doc.Solved
		chal.Solver = pending.doc.Solver
		chal.SolveDate = pending.doc.SolveDate
		chal.Tags = pending.doc.Tags
		for _, userID := range pending.doc.Players {
			chal.AddPlayer(userID)
		}
		ctf.AddChallenge(chal)
		attached++
	}

	if err := c.ctfs.Save(rebuilt); err != nil {
		return err
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("Successfully reloaded CTF data. (%d CTFs, %d challenges)", len(rebuilt), attached))
}

// looksLikeBotPurpose is a cheap check for purposes that were probably ours
// once but no longer parse.
func looksLikeBotPurpose(purpose string) bool {
	return strings.Contains(purpose, PurposeMarker)
}

func (c *ctfCommands) postSolves(ctx context.Context, inv *commands.Invocation) error {
	if c.tracker == nil || !c.tracker.Configured() {
		return commands.Errorf("The solve tracker is not configured.")
	}

	snapshot, err := c.ctfs.Load()
	if err != nil {
		return err
	}
	loc := locate(snapshot, inv.ChannelID)
	if loc == nil {
		return errNotCTFChannel
	}

	title := loc.ctf.LongName
	if len(inv.Args) > 0 {
		title = strings.Join(inv.Args, " ")
	}

	if err := c.tracker.PostCTFData(loc.ctf, title); err != nil {
		if errors.Is(err, solvetracker.ErrNotConfigured) {
			return commands.Errorf("The solve tracker is not configured.")
		}
		c.logger.Error("posting solve data failed", "ctf", loc.ctf.Name, "error", err)
		return commands.Errorf("Something with your configuration files doesn't seem to be correct. Please check your logfiles...")
	}
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("Solve post for CTF *%s* is on its way.", loc.ctf.Name))
}

func (c *ctfCommands) roll(ctx context.Context, inv *commands.Invocation) error {
	return inv.Backend.PostMessage(ctx, inv.ChannelID,
		fmt.Sprintf("<@%s> rolled the dice and got a *%d*!", inv.UserID, rand.IntN(6)+1))
}

// inviteUsers invites a batch of users, logging failures instead of failing
// the surrounding command. Slack rejects re-inviting present members.
func (c *ctfCommands) inviteUsers(ctx context.Context, backend chat.Backend, channelID string, userIDs []string) {
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if err := backend.InviteUser(ctx, channelID, userID); err != nil {
			c.logger.Debug("invite failed", "channel", channelID, "user", userID, "error", err)
		}
	}
}

// displayName resolves a user id to its display name, falling back to the id
// itself when the lookup fails.
func (c *ctfCommands) displayName(ctx context.Context, backend chat.Backend, userID string) string {
	name, err := backend.MemberName(ctx, userID)
	if err != nil {
		return userID
	}
	return name
}

// parseUserRef strips Slack's <@U123> and <@U123|name> mention formatting.
func parseUserRef(ref string) string {
	ref = strings.TrimPrefix(ref, "<")
	ref = strings.TrimSuffix(ref, ">")
	ref = strings.TrimPrefix(ref, "@")
	if i := strings.Index(ref, "|"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
