package audio

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	propVolume     = "volume"
	propCutoff     = "cutoff"
	propResonance  = "resonance"
	propEnvAttack  = "env.attack"
	propEnvDecay   = "env.decay"
	propPitchBend  = "pitchbend"
	propChordOn    = "chord.enabled"
	propChordSplit = "chord.split"
	propMode       = "mode"
)

// Chord fan-out intervals: root, major third, perfect fifth.
const (
	chordThird = 4
	chordFifth = 7
)

// Engine is the control-side half of the instrument. It owns note and sustain
// state, fans notes out in chord mode, and forwards voice commands to the
// audio-side Instrument through the event buffer. All methods are safe to
// call from the REPL, MIDI callbacks and the watcher; none of them block.
type Engine struct {
	*Props
	inst *Instrument

	status atomic.Int32

	mu        sync.Mutex
	sample    *Sample
	loading   bool
	loadGen   int
	hold      bool
	active    map[int]struct{} // notes physically down, including chord tones
	fanout    map[int][]int    // notes started per key, as fanned out at note-on
	sustained map[int]struct{} // released while hold was engaged

	chordOn    *atomic.Value
	chordSplit *atomic.Value
	mode       *atomic.Value
}

func NewEngine() *Engine {
	props := NewProps()
	e := &Engine{
		Props:     props,
		inst:      newInstrument(props),
		active:    make(map[int]struct{}),
		fanout:    make(map[int][]int),
		sustained: make(map[int]struct{}),

		chordOn:    props.MustRegister(propChordOn, setBool, false),
		chordSplit: props.MustRegister(propChordSplit, setNote, DefaultRoot),
		mode:       props.MustRegister(propMode, setMode, "mono"),
	}
	return e
}

// Source returns the audio-side instrument for wiring into a Sink.
func (e *Engine) Source() *Instrument { return e.inst }

// NoteOn triggers playback at the given MIDI note. It is a silent no-op when
// no sample is loaded or a load is still in flight. In chord mode, notes
// below the split point fan out to a major triad. In mono mode any sounding
// voice is cut before the new one starts.
func (e *Engine) NoteOn(note, velocity int) {
	if note < 0 || note > 127 {
		return
	}
	if velocity < 1 {
		velocity = 1
	}
	if velocity > 127 {
		velocity = 127
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sample == nil || e.loading {
		return
	}

	targets := e.fanOut(note)
	e.fanout[note] = targets

	if e.mode.Load().(string) == "mono" {
		e.inst.events.push(event{kind: eventCutAll})
		e.sustained = make(map[int]struct{})
	}
	for _, t := range targets {
		e.active[t] = struct{}{}
		delete(e.sustained, t)
		e.inst.events.push(event{kind: eventNoteOn, pitch: t, velocity: velocity})
	}
}

// NoteOff releases the given note and the chord tones that were started with
// it. While the hold pedal is engaged the voices keep sounding and the notes
// move to the sustained set instead; the active set always tracks physical
// key state, not audible state. Releasing a note that isn't down is a no-op.
func (e *Engine) NoteOff(note int) {
	if note < 0 || note > 127 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	targets, ok := e.fanout[note]
	if !ok {
		targets = []int{note}
	}
	delete(e.fanout, note)

	for _, t := range targets {
		delete(e.active, t)
	}
	if e.hold {
		for _, t := range targets {
			e.sustained[t] = struct{}{}
		}
		return
	}
	for _, t := range targets {
		e.inst.events.push(event{kind: eventNoteOff, pitch: t})
	}
}

// SetHold engages or releases the sustain pedal. On release, every note that
// went up while the pedal was down receives its deferred note-off exactly
// once.
func (e *Engine) SetHold(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on == e.hold {
		return
	}
	e.hold = on
	if on {
		return
	}
	for note := range e.sustained {
		e.inst.events.push(event{kind: eventNoteOff, pitch: note})
	}
	e.sustained = make(map[int]struct{})
}

// Hold reports the sustain pedal state.
func (e *Engine) Hold() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hold
}

// Silence cuts all voices and drops deferred sustain releases. Physical key
// state is untouched; later note-offs for still-held keys are tolerated
// no-ops.
func (e *Engine) Silence() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inst.events.push(event{kind: eventCutAll})
	e.sustained = make(map[int]struct{})
}

// Load fetches and decodes a sample on its own goroutine, then swaps it in.
// On failure the previous sample stays loaded and playable; the status
// indicator shows ERROR until the next load attempt. Notes arriving while
// the load is in flight produce no sound and no error. A newer Load
// supersedes an unfinished one.
func (e *Engine) Load(name, src string, root int) {
	e.mu.Lock()
	e.loading = true
	e.loadGen++
	gen := e.loadGen
	e.mu.Unlock()
	e.status.Store(int32(StatusLoading))

	go func() {
		sample, err := LoadSample(name, src, root)
		e.finishLoad(gen, sample, err)
	}()
}

func (e *Engine) finishLoad(gen int, sample *Sample, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen {
		return // superseded by a newer load
	}
	e.loading = false
	if err != nil {
		log.Printf("engine: load sample: %v", err)
		e.status.Store(int32(StatusError))
		return
	}
	e.setSampleLocked(sample)
}

// SetSample wires a decoded sample directly into the engine, replacing the
// current one. The swap is atomic from the caller's perspective: all voices
// on the old sample stop before the new one can sound.
func (e *Engine) SetSample(s *Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSampleLocked(s)
}

func (e *Engine) setSampleLocked(s *Sample) {
	e.sample = s
	e.sustained = make(map[int]struct{})
	e.inst.events.push(event{kind: eventSetSample, sample: s})
	e.status.Store(int32(StatusReady))
}

// Sample returns the currently loaded sample, or nil.
func (e *Engine) Sample() *Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sample
}

// Status reports the sample-load status for the indicator.
func (e *Engine) Status() Status { return Status(e.status.Load()) }

// IsPlaying reports whether any voice was sounding as of the last audio
// buffer.
func (e *Engine) IsPlaying() bool { return e.inst.Playing() }

// ActiveNotes returns the notes currently considered down, sorted. It
// reflects physical key state: a note sustained past its release by the hold
// pedal is not in this set.
func (e *Engine) ActiveNotes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	notes := make([]int, 0, len(e.active))
	for n := range e.active {
		notes = append(notes, n)
	}
	sort.Ints(notes)
	return notes
}

// PitchBend bends sounding and future voices by up to two semitones either
// way. The value is clamped to -1..1.
func (e *Engine) PitchBend(v float64) {
	_ = e.Set(propPitchBend, v)
}

// ModWheel maps the modulation wheel onto filter resonance.
func (e *Engine) ModWheel(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	_ = e.Set(propResonance, minQ+v*(maxQ-minQ))
}

func (e *Engine) fanOut(note int) []int {
	if e.chordOn.Load().(bool) && note < e.chordSplit.Load().(int) {
		targets := []int{note}
		if note+chordThird <= 127 {
			targets = append(targets, note+chordThird)
		}
		if note+chordFifth <= 127 {
			targets = append(targets, note+chordFifth)
		}
		return targets
	}
	return []int{note}
}
