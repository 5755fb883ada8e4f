package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
)

// command is one REPL verb.
type command struct {
	name     string
	aliases  []string
	usage    string
	severity Severity
	// needsLogin hides the command from logged-out users
	needsLogin bool
	run        func(ctx context.Context, args []string) error
}

// session is what the loop needs from the app around it.
type session interface {
	isLoggedIn() bool
	status() string
	home(ctx context.Context)
}

type commandTable map[string]*command

func newCommandTable(cmds []*command) commandTable {
	t := make(commandTable, len(cmds)*2)
	for _, c := range cmds {
		t[c.name] = c
		for _, a := range c.aliases {
			t[a] = c
		}
	}
	return t
}

func (t commandTable) visible(loggedIn bool) []*command {
	seen := map[*command]bool{}
	var out []*command
	for _, c := range t {
		if seen[c] || (c.needsLogin && !loggedIn) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// runREPL reads commands from reader until EOF or exit. Each command runs
// inside the boundary at its own severity; errors are shown and the loop
// goes on.
func runREPL(ctx context.Context, s session, cmds commandTable, b *Boundary, reader *bufio.Reader, out *Output) {
	for {
		if ctx.Err() != nil {
			return
		}
		out.Printf("expat %s> ", s.status())

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			out.Println()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := strings.ToLower(parts[0]), parts[1:]

		switch name {
		case "exit", "quit":
			out.Println("Bye!")
			return
		case "help":
			printHelp(out, cmds.visible(s.isLoggedIn()))
			continue
		case "retry":
			showError(out, b.Retry(ctx))
			continue
		case "home":
			b.Reset()
			s.home(ctx)
			continue
		case "report":
			b.Report(ctx)
			continue
		}

		cmd, ok := cmds[name]
		if !ok {
			out.Println("Unknown command:", name, "(type 'help')")
			continue
		}
		if cmd.needsLogin && !s.isLoggedIn() {
			out.Println("Please log in first (type 'login').")
			continue
		}

		run := cmd.run
		err = b.Run(ctx, cmd.severity, cmd.name, func(ctx context.Context) error { return run(ctx, args) })
		showError(out, err)
	}
}

func printHelp(out *Output, cmds []*command) {
	out.Println("Commands:")
	for _, c := range cmds {
		out.Printf("  %s\n", c.usage)
	}
	out.Println("  help | retry | home | report | exit")
}
