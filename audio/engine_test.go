package audio

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
)

func testSample(name string, root int) *Sample {
	// Long enough that voices outlive any test's processing.
	buf := make([]float64, sampleRate*8)
	for i := range buf {
		buf[i] = 0.5
	}
	return &Sample{Name: name, Root: root, buf: buf}
}

func newTestEngine() *Engine {
	e := NewEngine()
	e.SetSample(testSample("test", DefaultRoot))
	process(e, 1) // apply the swap event
	return e
}

// process runs the audio callback n times, draining control events and
// advancing voices.
func process(e *Engine, n int) {
	out := [][]float32{make([]float32, bufferSize), make([]float32, bufferSize)}
	for i := 0; i < n; i++ {
		for c := range out {
			for j := range out[c] {
				out[c][j] = 0
			}
		}
		e.inst.Process(out)
	}
}

func soundingPitches(e *Engine) []int {
	var pitches []int
	for _, v := range e.inst.voices {
		if v.State() != stateFree {
			pitches = append(pitches, v.Pitch())
		}
	}
	sort.Ints(pitches)
	return pitches
}

func voiceRate(t *testing.T, e *Engine, pitch int) float64 {
	t.Helper()
	for _, v := range e.inst.voices {
		sv := v.(*samplerVoice)
		if sv.state != stateFree && sv.pitch == pitch {
			return sv.rate
		}
	}
	t.Fatalf("no sounding voice for pitch %d", pitch)
	return 0
}

func TestPlaybackRate(t *testing.T) {
	// Octave and unison ratios must be exact, not approximate.
	if got := playbackRate(60, 60); got != 1.0 {
		t.Errorf("playbackRate(60, 60): want 1.0, got %v", got)
	}
	if got := playbackRate(72, 60); got != 2.0 {
		t.Errorf("playbackRate(72, 60): want 2.0, got %v", got)
	}
	if got := playbackRate(48, 60); got != 0.5 {
		t.Errorf("playbackRate(48, 60): want 0.5, got %v", got)
	}
	if want, got := math.Exp2(7.0/12.0), playbackRate(67, 60); math.Abs(want-got) > 1e-12 {
		t.Errorf("playbackRate(67, 60): want %v, got %v", want, got)
	}
	if got := playbackRate(60, 48); got != 2.0 {
		t.Errorf("playbackRate(60, 48): want 2.0, got %v", got)
	}
}

func TestMonophonicRetrigger(t *testing.T) {
	e := newTestEngine() // mode defaults to mono

	e.NoteOn(64, 100)
	process(e, 1)
	if want, got := []int{64}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Fatalf("wrong sounding pitches: want %v, got %v", want, got)
	}

	e.NoteOn(67, 100)
	process(e, 1) // the cut voice fades out within one buffer
	if want, got := []int{67}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong sounding pitches after retrigger: want %v, got %v", want, got)
	}
}

func TestPolyphonic(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propMode, "poly"); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.NoteOn(67, 100)
	process(e, 1)
	if want, got := []int{60, 64, 67}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong sounding pitches: want %v, got %v", want, got)
	}
}

func TestRetriggerSamePitch(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propMode, "poly"); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(60, 100)
	process(e, 4)
	e.NoteOn(60, 100)
	process(e, 1)

	// The old voice is choked, the new one restarts from the beginning.
	if want, got := []int{60}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Fatalf("wrong sounding pitches: want %v, got %v", want, got)
	}
	for _, v := range e.inst.voices {
		sv := v.(*samplerVoice)
		if sv.state == stateFree {
			continue
		}
		if sv.pos > bufferSize*2 {
			t.Errorf("retriggered voice did not restart: pos %v", sv.pos)
		}
	}
}

func TestChordFanOut(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propChordOn, true); err != nil {
		t.Fatal(err)
	}
	if err := e.Set(propChordSplit, 60); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(48, 100)
	if want, got := []int{48, 52, 55}, e.ActiveNotes(); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong active notes below split: want %v, got %v", want, got)
	}
	process(e, 1)
	if want, got := []int{48, 52, 55}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong sounding pitches below split: want %v, got %v", want, got)
	}

	e.NoteOff(48)

	// At or above the split point a key plays a single note.
	e.NoteOn(72, 100)
	if want, got := []int{72}, e.ActiveNotes(); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong active notes above split: want %v, got %v", want, got)
	}
}

func TestChordReleaseAfterToggle(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propEnvDecay, 0.001); err != nil {
		t.Fatal(err)
	}
	if err := e.Set(propChordOn, true); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(48, 100)
	process(e, 1)

	// Toggling chord mode while the key is down must not strand the chord
	// tones: the note-off releases the notes recorded at note-on.
	if err := e.Set(propChordOn, false); err != nil {
		t.Fatal(err)
	}
	e.NoteOff(48)
	process(e, 2)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("stranded voices after chord toggle: %v", got)
	}
}

func TestSustainScenario(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propEnvDecay, 0.001); err != nil {
		t.Fatal(err)
	}

	e.SetHold(true)
	e.NoteOn(40, 100)
	e.NoteOff(40)
	process(e, 1)

	// The key is up, so it leaves the active set, but the voice keeps
	// sounding until the pedal is released.
	if got := e.ActiveNotes(); len(got) != 0 {
		t.Errorf("active notes should reflect key state: got %v", got)
	}
	if want, got := []int{40}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Fatalf("sustained voice should keep sounding: want %v, got %v", want, got)
	}

	e.SetHold(false)
	process(e, 2)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("voices should stop when hold is released: got %v", got)
	}

	// Releasing the pedal again must not replay the deferred note-offs.
	e.SetHold(true)
	e.SetHold(false)
	process(e, 1)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("unexpected voices after second pedal release: got %v", got)
	}
}

func TestNoteOffIdempotent(t *testing.T) {
	e := newTestEngine()

	e.NoteOff(70)
	e.NoteOff(70)
	if got := e.ActiveNotes(); len(got) != 0 {
		t.Errorf("unexpected active notes: %v", got)
	}

	e.NoteOn(60, 100)
	e.NoteOff(60)
	e.NoteOff(60)
	if got := e.ActiveNotes(); len(got) != 0 {
		t.Errorf("unexpected active notes: %v", got)
	}
}

func TestParameterClamp(t *testing.T) {
	e := newTestEngine()

	if err := e.Set(propVolume, -5.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Get(propVolume); v.(float64) != 0.0 {
		t.Errorf("volume not clamped to minimum: got %v", v)
	}

	if err := e.Set(propCutoff, 999999.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Get(propCutoff); v.(float64) != maxCutoff {
		t.Errorf("cutoff not clamped to maximum: got %v", v)
	}

	if err := e.Set(propCutoff, 1.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Get(propCutoff); v.(float64) != minCutoff {
		t.Errorf("cutoff not clamped to minimum: got %v", v)
	}

	if err := e.Set("bogus", 1.0); err == nil {
		t.Error("expected error for unknown property")
	}
}

func TestNoSampleIsSilentNoOp(t *testing.T) {
	e := NewEngine()
	e.NoteOn(60, 100)
	process(e, 1)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("voices without a sample: %v", got)
	}
	if e.Status() != StatusOffline {
		t.Errorf("want OFFLINE, got %v", e.Status())
	}
}

func TestNoteOnDuringLoadDropped(t *testing.T) {
	e := newTestEngine()

	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()

	e.NoteOn(60, 100)
	process(e, 1)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("notes during load should produce no sound: %v", got)
	}
}

func TestLoadErrorKeepsPreviousSample(t *testing.T) {
	e := newTestEngine()
	prev := e.Sample()

	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.loading = true
	e.mu.Unlock()

	e.finishLoad(gen, nil, errors.New("decode failed"))

	if e.Status() != StatusError {
		t.Errorf("want ERROR, got %v", e.Status())
	}
	if e.Sample() != prev {
		t.Error("previous sample should stay loaded after a failed load")
	}

	// The failed load must not keep blocking triggers.
	e.NoteOn(60, 100)
	process(e, 1)
	if want, got := []int{60}, soundingPitches(e); !reflect.DeepEqual(want, got) {
		t.Errorf("engine should stay playable: want %v, got %v", want, got)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	e := newTestEngine()

	e.mu.Lock()
	e.loadGen++
	stale := e.loadGen
	e.loadGen++
	e.loading = true
	e.mu.Unlock()

	e.finishLoad(stale, testSample("old", 60), nil)

	e.mu.Lock()
	loading := e.loading
	e.mu.Unlock()
	if !loading {
		t.Error("superseded load should not complete the newer one")
	}
	if s := e.Sample(); s.Name != "test" {
		t.Errorf("superseded load replaced the sample: %v", s.Name)
	}
}

func TestSampleSwapCutsVoices(t *testing.T) {
	e := newTestEngine()
	e.NoteOn(60, 100)
	process(e, 1)

	e.SetSample(testSample("next", 48))
	process(e, 1)
	if got := soundingPitches(e); len(got) != 0 {
		t.Errorf("voices should stop on sample swap: %v", got)
	}

	e.NoteOn(60, 100)
	process(e, 1)
	if want, got := 2.0, voiceRate(t, e, 60); want != got {
		t.Errorf("voice should use the new sample's root: want rate %v, got %v", want, got)
	}
}

func TestEndToEnd(t *testing.T) {
	e := newTestEngine()
	if err := e.Set(propEnvDecay, 0.001); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(72, 100)
	process(e, 1)
	if want, got := 2.0, voiceRate(t, e, 72); want != got {
		t.Errorf("wrong playback rate: want %v, got %v", want, got)
	}
	if want, got := []int{72}, e.ActiveNotes(); !reflect.DeepEqual(want, got) {
		t.Errorf("wrong active notes: want %v, got %v", want, got)
	}
	if !e.IsPlaying() {
		t.Error("engine should be playing")
	}

	e.NoteOff(72)
	process(e, 2)
	if got := e.ActiveNotes(); len(got) != 0 {
		t.Errorf("active notes not cleared: %v", got)
	}
	if e.IsPlaying() {
		t.Error("engine should be silent after the last voice releases")
	}
}

func TestVolumeToGain(t *testing.T) {
	if got := volumeToGain(0); got != 0 {
		t.Errorf("volumeToGain(0): want 0, got %v", got)
	}
	if got := volumeToGain(0.01); got != 0 {
		t.Errorf("volumeToGain(0.01): want 0 (floor), got %v", got)
	}
	if got := volumeToGain(1); got != 1 {
		t.Errorf("volumeToGain(1): want 1, got %v", got)
	}
	if lo, hi := volumeToGain(0.3), volumeToGain(0.7); lo >= hi {
		t.Errorf("gain curve not monotonic: %v >= %v", lo, hi)
	}
}

func TestPitchBendRange(t *testing.T) {
	e := newTestEngine()
	e.PitchBend(5.0) // clamped to 1
	if v, _ := e.Get(propPitchBend); v.(float64) != 1.0 {
		t.Errorf("pitch bend not clamped: got %v", v)
	}
	e.PitchBend(-1.0)
	if v, _ := e.Get(propPitchBend); v.(float64) != -1.0 {
		t.Errorf("wrong pitch bend: got %v", v)
	}
}
