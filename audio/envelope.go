package audio

type envelopeState int

const (
	stateIdle envelopeState = iota
	stateAttack
	stateSustain
	stateRelease
)

// envelope is an attack/sustain/release ramp. Samples are one-shot, so there
// is no decay stage: after the attack the level holds at 1 until release.
type envelope struct {
	attack  float64
	release float64

	attackRate  float64
	releaseRate float64

	val   float64
	state envelopeState
}

func (e *envelope) value() float64 {
	switch e.state {
	case stateIdle:
		return 0.
	case stateAttack:
		e.val += e.attackRate
		if e.val >= 1 {
			e.val = 1.0
			e.state = stateSustain
		}
	case stateSustain:
		e.val = 1.0
	case stateRelease:
		e.val -= e.releaseRate
		if e.val <= 0 {
			e.val = 0
			e.state = stateIdle
		}
	}
	return e.val
}

func (e *envelope) startAttack() {
	e.val = 0
	e.state = stateAttack
	if e.attack <= 0 {
		e.attackRate = 1.0
	} else {
		e.attackRate = 1.0 / (e.attack * sampleRate)
	}
}

func (e *envelope) startRelease(release float64) {
	if e.state == stateIdle || e.state == stateRelease {
		return
	}
	e.release = release
	e.state = stateRelease
	if release <= 0 {
		e.releaseRate = 1.0
		return
	}
	e.releaseRate = e.val / (release * sampleRate)
}

// cut forces a very short release regardless of envelope state, for
// retrigger and monophonic cutoff. Cutting an idle envelope is a no-op.
func (e *envelope) cut() {
	if e.state == stateIdle {
		return
	}
	e.state = stateRelease
	e.releaseRate = e.val / (0.001 * sampleRate)
}

func (e *envelope) done() bool { return e.state == stateIdle }
