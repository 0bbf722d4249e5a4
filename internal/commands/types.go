// Package commands implements the command-dispatch core: the Command
// contract, per-handler command tables with alias and reaction support, and
// the registry that routes inbound chat text to the right handler.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ctfcrew/brigade/internal/chat"
)

// Invocation carries everything a command needs to run. One value is built
// per dispatch and handed to the matched command.
type Invocation struct {
	Backend   chat.Backend
	Args      []string
	Timestamp string
	ChannelID string
	UserID    string
	IsAdmin   bool
}

// Command is a single invocable operation. Implementations mutate stores and
// post chat messages; they report user-facing failures by returning a
// *UserError and anything else by returning an ordinary error.
type Command interface {
	Execute(ctx context.Context, inv *Invocation) error
}

// CommandFunc adapts a plain function to the Command interface.
type CommandFunc func(ctx context.Context, inv *Invocation) error

func (f CommandFunc) Execute(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}

// Descriptor is the static metadata for one command: implementation, help
// text, argument names for arity checking and usage output, and the
// admin-only flag.
type Descriptor struct {
	Command     Command
	Description string
	Args        []string
	OptArgs     []string
	AdminOnly   bool
}

// UserError is a user-facing failure. Its message is posted back to the
// originating channel verbatim; it never reaches the logs as an error.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Errorf builds a *UserError from a format string.
func Errorf(format string, a ...any) error {
	return &UserError{Message: fmt.Sprintf(format, a...)}
}

// usage renders the argument signature for a command, required arguments in
// angle brackets and optional ones in square brackets.
func (d *Descriptor) usage(handlerName, commandName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`!%s %s", handlerName, commandName)
	for _, arg := range d.Args {
		fmt.Fprintf(&b, " <%s>", arg)
	}
	for _, arg := range d.OptArgs {
		fmt.Fprintf(&b, " [%s]", arg)
	}
	b.WriteString("`")
	return b.String()
}
