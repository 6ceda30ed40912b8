package audio

import "math"

type voiceState int

const (
	stateFree voiceState = iota
	stateActive
	stateReleased
)

// Voice is the narrow surface the pool needs from a playback instance, so the
// engine core stays portable across concrete voice implementations.
type Voice interface {
	Start(s *Sample, pitch int, velocity int, attack float64)
	Release(release float64)
	Cut()
	Stop()
	Process(buf []float64, rateMul float64)
	Pitch() int
	State() voiceState
}

// playbackRate returns the speed ratio that transposes a sample recorded at
// root up or down to the requested note: 2^((note-root)/12).
func playbackRate(note, root int) float64 {
	return math.Exp2(float64(note-root) / 12.0)
}

// samplerVoice plays one sample transposed to one pitch. The playback
// position is kept as a float so fractional rates read between frames with
// linear interpolation.
type samplerVoice struct {
	sample *Sample
	state  voiceState
	env    *envelope
	pos    float64
	rate   float64
	pitch  int
	gain   float64
}

func newSamplerVoice() *samplerVoice {
	return &samplerVoice{env: &envelope{}}
}

func (v *samplerVoice) Start(s *Sample, pitch, velocity int, attack float64) {
	v.sample = s
	v.pitch = pitch
	v.pos = 0
	v.rate = playbackRate(pitch, s.Root)
	v.gain = float64(velocity) / 127.0
	v.env.attack = attack
	v.env.startAttack()
	v.state = stateActive
}

func (v *samplerVoice) Release(release float64) {
	if v.state != stateActive {
		return
	}
	v.state = stateReleased
	v.env.startRelease(release)
}

// Stop silences the voice immediately, dropping its sample reference.
// Stopping a free voice is a no-op.
func (v *samplerVoice) Stop() {
	if v.state == stateFree {
		return
	}
	v.reset()
}

// Cut fades the voice out over 1ms. Cutting a free voice is a no-op.
func (v *samplerVoice) Cut() {
	if v.state == stateFree {
		return
	}
	v.state = stateReleased
	v.env.cut()
}

func (v *samplerVoice) Process(buf []float64, rateMul float64) {
	s := v.sample
	n := len(s.buf)
	for i := range buf {
		idx := int(v.pos)
		if idx >= n-1 {
			break
		}
		frac := v.pos - float64(idx)
		sample := s.buf[idx]*(1-frac) + s.buf[idx+1]*frac
		buf[i] += sample * v.env.value() * v.gain
		v.pos += v.rate * rateMul
	}
	if int(v.pos) >= n-1 || v.env.done() {
		v.reset()
	}
}

func (v *samplerVoice) reset() {
	v.sample = nil
	v.pos = 0
	v.pitch = 0
	v.state = stateFree
	v.env.state = stateIdle
	v.env.val = 0
}

func (v *samplerVoice) Pitch() int        { return v.pitch }
func (v *samplerVoice) State() voiceState { return v.state }
