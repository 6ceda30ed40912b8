package audio

import (
	"fmt"
	"sync/atomic"
)

// Props stores engine parameters that can be updated without locks. The audio
// callback loads values every block, so setters must store final, in-domain
// values. All properties should be registered before any reads take place.
type Props struct {
	properties map[string]*atomic.Value
	setters    map[string]setter
}

func NewProps() *Props {
	return &Props{
		properties: make(map[string]*atomic.Value),
		setters:    make(map[string]setter),
	}
}

// Set updates the property with value. The key has to be registered first
// using Register. Out-of-range numeric values are clamped, not rejected:
// parameters are driven by MIDI controllers and must saturate at the edges.
func (p *Props) Set(key string, value interface{}) error {
	prop, ok := p.properties[key]
	if !ok {
		return fmt.Errorf("unknown property %s", key)
	}
	set := p.setters[key]
	if err := set(value, prop); err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	return nil
}

func (p *Props) Get(key string) (interface{}, error) {
	prop, ok := p.properties[key]
	if !ok {
		return nil, fmt.Errorf("unknown property %s", key)
	}
	return prop.Load(), nil
}

// Register adds a new property.
func (p *Props) Register(key string, set setter, init interface{}) (*atomic.Value, error) {
	var prop atomic.Value
	p.properties[key] = &prop
	p.setters[key] = set
	return &prop, set(init, &prop)
}

func (p *Props) MustRegister(key string, set setter, init interface{}) *atomic.Value {
	if prop, err := p.Register(key, set, init); err != nil {
		panic(err)
	} else {
		return prop
	}
}

type setter func(val interface{}, dest *atomic.Value) error

var (
	setVolume   = setFloat64(0, 1)
	setCutoff   = setFloat64(minCutoff, maxCutoff)
	setQ        = setFloat64(minQ, maxQ)
	setEnvParam = setFloat64(0, 2)
	setBend     = setFloat64(-1, 1)
	setNote     = setInt(0, 127)
)

// setFloat64 returns a setter that clamps to [min, max] before storing.
func setFloat64(min, max float64) setter {
	return func(v interface{}, dest *atomic.Value) error {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return fmt.Errorf("value is not a float64: %v", v)
		}
		if f < min {
			f = min
		}
		if f > max {
			f = max
		}
		dest.Store(f)
		return nil
	}
}

func setInt(min, max int) setter {
	return func(v interface{}, dest *atomic.Value) error {
		var i int
		switch n := v.(type) {
		case float64:
			i = int(n)
		case int:
			i = n
		default:
			return fmt.Errorf("value is not an int: %v", v)
		}
		if i < min {
			i = min
		}
		if i > max {
			i = max
		}
		dest.Store(i)
		return nil
	}
}

func setBool(v interface{}, dest *atomic.Value) error {
	switch b := v.(type) {
	case bool:
		dest.Store(b)
	case string:
		switch b {
		case "on", "true":
			dest.Store(true)
		case "off", "false":
			dest.Store(false)
		default:
			return fmt.Errorf("value is not a bool: %v", v)
		}
	default:
		return fmt.Errorf("value is not a bool: %v", v)
	}
	return nil
}

func setMode(v interface{}, dest *atomic.Value) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("value is not a string: %v", v)
	}
	switch s {
	case "mono", "poly":
		dest.Store(s)
		return nil
	default:
		return fmt.Errorf("not a valid mode: %v", s)
	}
}
