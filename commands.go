package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/padtone/padtone/audio"
	"github.com/padtone/padtone/cue"
)

type command struct {
	name  string
	run   func(*env, []cue.Node) (string, error)
	arity int // -n means len(args) must be >= n
}

var commands = []command{
	{"load", loadCommand, -1},
	{"set", setCommand, 2},
	{"get", getCommand, 1},
	{"on", noteOnCommand, -1},
	{"off", noteOffCommand, 1},
	{"hold", holdCommand, 1},
	{"bend", bendCommand, 1},
	{"mod", modCommand, 1},
	{"status", statusCommand, 0},
	{"notes", notesCommand, 0},
	{"midi", midiCommand, 0},
	{"watch", watchCommand, 1},
	{"panic", panicCommand, 0},
}

func init() {
	// Registered here rather than in the literal above because helpCommand
	// reads commands, which would otherwise be an initialization cycle.
	commands = append(commands, command{"help", helpCommand, 0})
}

// loadCommand starts an asynchronous sample load: load "path-or-url" [root].
// The prompt comes back immediately; check progress with status.
func loadCommand(env *env, args []cue.Node) (string, error) {
	var src string
	root := env.lastRoot
	if root == 0 {
		root = audio.DefaultRoot
	}
	if err := readArgs(args[:1], &src); err != nil {
		return "", err
	}
	if len(args) > 1 {
		if err := readArgs(args[1:], &root); err != nil {
			return "", err
		}
	}
	name := filepath.Base(src)
	env.engine.Load(name, src, root)
	env.lastName = name
	env.lastSrc = src
	env.lastRoot = root
	if env.watcher.Active() && !isRemote(src) {
		if err := env.watcher.Watch(name, src, root); err != nil {
			return "", err
		}
	}
	return "loading " + src, nil
}

func setCommand(env *env, args []cue.Node) (string, error) {
	var prop string
	if err := readArgs(args[:1], &prop); err != nil {
		return "", err
	}
	switch v := args[1].(type) {
	case cue.Int:
		return "", env.engine.Set(prop, int(v))
	case cue.Float:
		return "", env.engine.Set(prop, float64(v))
	case cue.Identifier:
		return "", env.engine.Set(prop, string(v))
	case cue.String:
		return "", env.engine.Set(prop, string(v))
	default:
		return "", fmt.Errorf("unsupported property type: %v", v)
	}
}

func getCommand(env *env, args []cue.Node) (string, error) {
	var prop string
	if err := readArgs(args, &prop); err != nil {
		return "", err
	}
	v, err := env.engine.Get(prop)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func noteOnCommand(env *env, args []cue.Node) (string, error) {
	var note int
	velocity := 100
	if err := readArgs(args[:1], &note); err != nil {
		return "", err
	}
	if len(args) > 1 {
		if err := readArgs(args[1:], &velocity); err != nil {
			return "", err
		}
	}
	env.engine.NoteOn(note, velocity)
	return "", nil
}

func noteOffCommand(env *env, args []cue.Node) (string, error) {
	var note int
	if err := readArgs(args, &note); err != nil {
		return "", err
	}
	env.engine.NoteOff(note)
	return "", nil
}

func holdCommand(env *env, args []cue.Node) (string, error) {
	var state string
	if err := readArgs(args, &state); err != nil {
		return "", err
	}
	switch state {
	case "on":
		env.engine.SetHold(true)
	case "off":
		env.engine.SetHold(false)
	default:
		return "", fmt.Errorf("hold takes on or off, got %q", state)
	}
	return "", nil
}

func bendCommand(env *env, args []cue.Node) (string, error) {
	var v float64
	if err := readArgs(args, &v); err != nil {
		return "", err
	}
	env.engine.PitchBend(v)
	return "", nil
}

func modCommand(env *env, args []cue.Node) (string, error) {
	var v float64
	if err := readArgs(args, &v); err != nil {
		return "", err
	}
	env.engine.ModWheel(v)
	return "", nil
}

func statusCommand(env *env, args []cue.Node) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s", env.engine.Status())
	if s := env.engine.Sample(); s != nil {
		fmt.Fprintf(&b, "\nsample: %s (root %d, %d frames)", s.Name, s.Root, s.Len())
	}
	fmt.Fprintf(&b, "\nplaying: %v", env.engine.IsPlaying())
	fmt.Fprintf(&b, "\nhold: %v", env.engine.Hold())
	fmt.Fprintf(&b, "\nmidi: %v", env.midi.Enabled())
	return b.String(), nil
}

func notesCommand(env *env, args []cue.Node) (string, error) {
	notes := env.engine.ActiveNotes()
	if len(notes) == 0 {
		return "no active notes", nil
	}
	return strings.Trim(fmt.Sprint(notes), "[]"), nil
}

func midiCommand(env *env, args []cue.Node) (string, error) {
	if !env.midi.Enabled() {
		return "midi disabled", nil
	}
	devices := env.midi.Devices()
	if len(devices) == 0 {
		return "no midi devices connected", nil
	}
	return strings.Join(devices, "\n"), nil
}

func watchCommand(env *env, args []cue.Node) (string, error) {
	var state string
	if err := readArgs(args, &state); err != nil {
		return "", err
	}
	switch state {
	case "on":
		if env.lastSrc == "" {
			return "", errors.New("nothing loaded to watch")
		}
		if isRemote(env.lastSrc) {
			return "", fmt.Errorf("can't watch remote sample %s", env.lastSrc)
		}
		if err := env.watcher.Watch(env.lastName, env.lastSrc, env.lastRoot); err != nil {
			return "", err
		}
		return "watching " + env.lastSrc, nil
	case "off":
		env.watcher.Stop()
		return "", nil
	default:
		return "", fmt.Errorf("watch takes on or off, got %q", state)
	}
}

func panicCommand(env *env, args []cue.Node) (string, error) {
	env.engine.Silence()
	return "", nil
}

func helpCommand(env *env, args []cue.Node) (string, error) {
	names := make([]string, len(commands))
	for i, cmd := range commands {
		names[i] = cmd.name
	}
	return strings.Join(names, " "), nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func readArgs(args []cue.Node, slots ...interface{}) error {
	if len(args) != len(slots) {
		return errors.New("not enough arguments")
	}
	for n, arg := range args {
		dest := slots[n]
		switch p := dest.(type) {
		case *string:
			switch s := arg.(type) {
			case cue.String:
				*p = string(s)
			case cue.Identifier:
				*p = string(s)
			default:
				return errors.New("argument error: expected a string or identifier")
			}
		case *float64:
			switch f := arg.(type) {
			case cue.Float:
				*p = float64(f)
			case cue.Int:
				*p = float64(f)
			default:
				return errors.New("argument error: expected a number")
			}
		case *int:
			i, ok := arg.(cue.Int)
			if !ok {
				return errors.New("argument error: expected an integer")
			}
			*p = int(i)
		default:
			panic("readArgs: unhandled destination type: " + fmt.Sprint(p))
		}
	}
	return nil
}
