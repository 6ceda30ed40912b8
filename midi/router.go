// Package midi turns raw MIDI input into engine calls: note events go to the
// voice engine, recognized controllers to the parameter bus, and the sustain
// pedal drives the engine's hold state.
package midi

// Status byte high nibbles.
const (
	msgNoteOn  = 0x90
	msgNoteOff = 0x80
	msgControl = 0xB0
)

// Controller numbers with a dispatch entry. Anything else is ignored.
const (
	ccModWheel = 1
	ccVolume   = 7
	ccSustain  = 64
	ccRelease  = 72
	ccAttack   = 73
	ccCutoff   = 74
)

// Instrument is the surface the router drives. audio.Engine satisfies it.
type Instrument interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
	SetHold(on bool)
	ModWheel(v float64)
	Set(key string, value interface{}) error
}

type Router struct {
	target Instrument
}

func NewRouter(target Instrument) *Router {
	return &Router{target: target}
}

// Handle decodes one 3-byte MIDI message. A note-on with velocity zero is a
// note-off, per the MIDI 1.0 running-status convention. Unrecognized
// statuses and controllers are dropped silently; malformed data bytes are a
// caller contract violation and are not guarded beyond the engine's own
// range checks.
func (r *Router) Handle(status, data1, data2 byte) {
	switch status & 0xF0 {
	case msgNoteOn:
		if data2 > 0 {
			r.target.NoteOn(int(data1), int(data2))
		} else {
			r.target.NoteOff(int(data1))
		}
	case msgNoteOff:
		r.target.NoteOff(int(data1))
	case msgControl:
		r.controlChange(data1, data2)
	}
}

func (r *Router) controlChange(controller, value byte) {
	v := float64(value) / 127.0
	switch controller {
	case ccSustain:
		r.target.SetHold(value > 63)
	case ccVolume:
		_ = r.target.Set("volume", v)
	case ccCutoff:
		// Squared taper so the lower half of the controller covers the
		// musically useful range.
		_ = r.target.Set("cutoff", 20+19980*v*v)
	case ccModWheel:
		r.target.ModWheel(v)
	case ccAttack:
		_ = r.target.Set("env.attack", 2*v)
	case ccRelease:
		_ = r.target.Set("env.decay", 2*v)
	}
}
