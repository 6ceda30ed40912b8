package audio

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/youpy/go-wav"
)

// DefaultRoot is the MIDI note at which a sample plays at its natural speed.
const DefaultRoot = 60 // middle C

// Status reports where the engine is in its sample lifecycle. It is meant for
// a status indicator: ERROR means the last load failed, but a previously
// loaded sample (if any) is still playable.
type Status int32

const (
	StatusOffline Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "OFFLINE"
	case StatusLoading:
		return "LOADING"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sample is a decoded audio buffer plus the root note used for pitch-ratio
// calculation. The buffer is mono; voices resample it per note.
type Sample struct {
	Name string
	Src  string
	Root int

	buf []float64
}

// Len returns the sample length in frames.
func (s *Sample) Len() int { return len(s.buf) }

var httpClient = &http.Client{Timeout: 30 * time.Second}

// LoadSample reads and decodes a WAV sample from a local path or an http(s)
// URL. Stereo files are mixed down to mono by taking the first channel.
func LoadSample(name, src string, root int) (*Sample, error) {
	var r io.Reader
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		resp, err := httpClient.Get(src)
		if err != nil {
			return nil, fmt.Errorf("fetch sample %s: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch sample %s: %s", src, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch sample %s: %w", src, err)
		}
		r = bytes.NewReader(data)
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeSample(name, src, root, r)
}

func decodeSample(name, src string, root int, r io.Reader) (*Sample, error) {
	if root < 0 || root > 127 {
		root = DefaultRoot
	}
	snd := Sample{Name: name, Src: src, Root: root}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode sample %s: %w", src, err)
	}
	wr := wav.NewReader(bytes.NewReader(data))
	for {
		samples, err := wr.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode sample %s: %w", src, err)
		}
		for _, sample := range samples {
			snd.buf = append(snd.buf, wr.FloatValue(sample, 0))
		}
	}
	if len(snd.buf) == 0 {
		return nil, fmt.Errorf("decode sample %s: no audio frames", src)
	}
	return &snd, nil
}
