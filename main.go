package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/padtone/padtone/audio"
	"github.com/padtone/padtone/midi"
)

func main() {
	var (
		sample = flag.String("sample", "", "WAV file or URL to load at startup")
		root   = flag.Int("root", audio.DefaultRoot, "root note of the startup sample")
		run    = flag.String("run", "", "script of commands to run before the prompt")
		noMidi = flag.Bool("no-midi", false, "don't listen for MIDI devices")
	)
	flag.Parse()

	engine := audio.NewEngine()

	// A host without an audio device still gets the control surface; the
	// instrument is just silent.
	sink, err := audio.NewSink()
	if err != nil {
		log.Printf("audio output unavailable: %v", err)
	} else {
		sink.AddSources(engine.Source())
		if err := sink.Start(); err != nil {
			log.Fatal(err)
		}
		defer sink.Stop()
	}

	manager := midi.NewManager(midi.NewRouter(engine))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !*noMidi {
		go manager.Run(ctx)
	}

	env := &env{
		engine:  engine,
		midi:    manager,
		watcher: newWatcher(engine),
	}
	defer env.watcher.Stop()

	if *sample != "" {
		env.engine.Load(filepath.Base(*sample), *sample, *root)
		env.lastName = filepath.Base(*sample)
		env.lastSrc = *sample
		env.lastRoot = *root
	}

	if *run != "" {
		if err := runScript(env, *run); err != nil {
			log.Fatal(err)
		}
	}

	if err := repl(env); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runScript(env *env, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := env.eval(line); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return scanner.Err()
}
