package audio

import (
	"math"
	"sync/atomic"
)

const (
	blockSize  = 16
	sampleRate = 44100
	bufferSize = 512
)

const numVoices = 12

// Instrument is the audio-side half of the engine: it owns the voice pool and
// the currently wired sample, and is only ever mutated from the audio
// callback. The control thread talks to it through the event buffer and the
// parameter atomics.
type Instrument struct {
	voices []Voice
	events *eventBuffer
	buf    []float64
	sample *Sample
	filter *filter

	volume    *atomic.Value
	cutoff    *atomic.Value
	resonance *atomic.Value
	attack    *atomic.Value
	release   *atomic.Value
	pitchBend *atomic.Value

	playing atomic.Int32 // number of non-free voices after the last block
}

func newInstrument(props *Props) *Instrument {
	inst := &Instrument{
		events: newEventBuffer(64),
		buf:    make([]float64, bufferSize),
		filter: newFilter(),

		volume:    props.MustRegister(propVolume, setVolume, 0.8),
		cutoff:    props.MustRegister(propCutoff, setCutoff, maxCutoff),
		resonance: props.MustRegister(propResonance, setQ, 1.0),
		attack:    props.MustRegister(propEnvAttack, setEnvParam, 0.005),
		release:   props.MustRegister(propEnvDecay, setEnvParam, 0.25),
		pitchBend: props.MustRegister(propPitchBend, setBend, 0.0),
	}
	for n := 0; n < numVoices; n++ {
		inst.voices = append(inst.voices, newSamplerVoice())
	}
	return inst
}

// Process renders one buffer of audio. Control events are applied at buffer
// boundaries; within the buffer voices run block by block so the filter can
// ramp its cutoff.
func (i *Instrument) Process(samples [][]float32) {
	i.events.drain(i.handleEvent)

	var (
		cutoff  = i.cutoff.Load().(float64)
		q       = i.resonance.Load().(float64)
		bend    = i.pitchBend.Load().(float64)
		rateMul = math.Exp2(bend * bendRange / 12.0)
		gain    = volumeToGain(i.volume.Load().(float64))
	)

	frames := len(samples[0])
	for n := 0; n < frames; n += blockSize {
		end := n + blockSize
		if end > frames {
			end = frames
		}
		block := i.buf[n:end]
		for _, voice := range i.voices {
			if voice.State() == stateFree {
				continue
			}
			voice.Process(block, rateMul)
		}
		i.filter.process(block, cutoff, q)
	}

	var active int32
	for _, voice := range i.voices {
		if voice.State() != stateFree {
			active++
		}
	}
	i.playing.Store(active)

	for n := 0; n < frames; n++ {
		sample := float32(gain * i.buf[n])
		samples[0][n] += sample
		samples[1][n] += sample
		i.buf[n] = 0
	}
}

func (i *Instrument) handleEvent(ev event) {
	switch ev.kind {
	case eventNoteOn:
		if i.sample == nil {
			return
		}
		// Retrigger: a second note-on for a sounding pitch chokes the old
		// voice, no crossfade.
		for _, voice := range i.voices {
			if voice.State() != stateFree && voice.Pitch() == ev.pitch {
				voice.Cut()
			}
		}
		voice := i.findFreeVoice()
		if voice == nil {
			voice = i.stealVoice()
		}
		voice.Start(i.sample, ev.pitch, ev.velocity, i.attack.Load().(float64))
	case eventNoteOff:
		release := i.release.Load().(float64)
		for _, voice := range i.voices {
			if voice.State() == stateActive && voice.Pitch() == ev.pitch {
				voice.Release(release)
			}
		}
	case eventCutAll:
		for _, voice := range i.voices {
			voice.Cut()
		}
	case eventSetSample:
		// The old sample must be fully disconnected before the new one is
		// wired up, so voices stop hard rather than fading out.
		for _, voice := range i.voices {
			voice.Stop()
		}
		i.sample = ev.sample
	}
}

func (i *Instrument) findFreeVoice() Voice {
	for _, voice := range i.voices {
		if voice.State() == stateFree {
			return voice
		}
	}
	return nil
}

// stealVoice picks a victim when the pool is exhausted: prefer a voice
// already in its release phase, otherwise take the first active one.
func (i *Instrument) stealVoice() Voice {
	for _, voice := range i.voices {
		if voice.State() == stateReleased {
			return voice
		}
	}
	return i.voices[0]
}

// Playing reports whether any voice is sounding, as of the last processed
// buffer.
func (i *Instrument) Playing() bool { return i.playing.Load() > 0 }

const bendRange = 2.0 // semitones at full pitch-bend deflection

// volumeToGain maps the linear 0-1 volume parameter onto a dB curve
// (0 -> -40dB, 1 -> 0dB). Values at or below 0.01 mute outright instead of
// chasing -inf.
func volumeToGain(v float64) float64 {
	if v <= 0.01 {
		return 0
	}
	db := 40 * (v - 1)
	return math.Pow(10, db/20.0)
}
