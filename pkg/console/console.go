// Package console implements the line oriented command console of the meter.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/google/shlex"
)

// Prompt is printed before every command line.
const Prompt = "> "

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgCount       = errors.New("invalid argument count")
	ErrUsage          = errors.New("usage")
)

// Handler executes a command. args excludes the command name.
type Handler func(w io.Writer, args []string) error

// Command describes a console command.
type Command struct {
	Name    string
	Help    string
	MinArgs int
	MaxArgs int
	Handler Handler
}

// Registry holds the commands of one console. It is owned by the process and
// passed to whoever reads the input lines.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates a registry containing the help command.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]Command)}
	_ = r.Register(Command{
		Name:    "help",
		Help:    "Display the help message\n  Usage: help [command]",
		MaxArgs: 1,
		Handler: r.help,
	})
	return r
}

// Register adds a command.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("unable to register command: empty name")
	}
	if cmd.MaxArgs < cmd.MinArgs {
		return fmt.Errorf("unable to register command %s: min args %d greater than max args %d", cmd.Name, cmd.MinArgs, cmd.MaxArgs)
	}
	if _, ok := r.commands[cmd.Name]; ok {
		return fmt.Errorf("unable to register command %s: command already exists", cmd.Name)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("unable to register command %s: handler is empty", cmd.Name)
	}

	r.commands[cmd.Name] = cmd
	return nil
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute tokenizes and runs one command line. Empty lines do nothing.
func (r *Registry) Execute(w io.Writer, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := r.commands[args[0]]
	if !ok {
		if s := r.suggest(args[0]); s != "" {
			return fmt.Errorf("%w: %s, did you mean '%s'?", ErrUnknownCommand, args[0], s)
		}
		return fmt.Errorf("%w: %s, try 'help'", ErrUnknownCommand, args[0])
	}

	params := args[1:]
	if len(params) < cmd.MinArgs || len(params) > cmd.MaxArgs {
		return fmt.Errorf("%w for command: %s", ErrArgCount, cmd.Name)
	}

	return cmd.Handler(w, params)
}

// Serve reads command lines from in until EOF, writing replies and errors to out.
func (r *Registry) Serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, Prompt)
	for scanner.Scan() {
		if err := r.Execute(out, scanner.Text()); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprint(out, Prompt)
	}
	return scanner.Err()
}

func (r *Registry) help(w io.Writer, args []string) error {
	if len(args) == 0 {
		for _, name := range r.Names() {
			fmt.Fprintf(w, "%s - %s\n", name, r.commands[name].Help)
		}
		return nil
	}

	cmd, ok := r.commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	fmt.Fprintf(w, "%s - %s\n", cmd.Name, cmd.Help)
	return nil
}

// suggest returns the closest command name within two edits, if any.
func (r *Registry) suggest(name string) string {
	best, bestDist := "", 3
	for _, candidate := range r.Names() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
