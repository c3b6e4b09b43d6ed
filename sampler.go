package layerz

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/zoobzio/layerz/config"
)

// MaxSampleRate is the sample rate that records every trace.
const MaxSampleRate = config.MaxSampleRate

// TracingMode controls whether new traces may start.
type TracingMode int

const (
	// ModeAlways starts new traces at the configured rate and continues
	// incoming ones.
	ModeAlways TracingMode = iota
	// ModeThrough only continues traces started upstream.
	ModeThrough
	// ModeNever starts no new traces.
	ModeNever
)

// String returns the configuration name of the mode.
func (m TracingMode) String() string {
	switch m {
	case ModeAlways:
		return config.ModeAlways
	case ModeThrough:
		return config.ModeThrough
	case ModeNever:
		return config.ModeNever
	default:
		return fmt.Sprintf("TracingMode(%d)", int(m))
	}
}

// ParseTracingMode parses "always", "through" or "never".
func ParseTracingMode(s string) (TracingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case config.ModeAlways, "":
		return ModeAlways, nil
	case config.ModeThrough:
		return ModeThrough, nil
	case config.ModeNever:
		return ModeNever, nil
	default:
		return 0, fmt.Errorf("%w: unknown tracing mode %q", ErrInvalidSampleConfiguration, s)
	}
}

// SampleSource records where a sample rate came from.
type SampleSource int

const (
	SourceNone    SampleSource = 0
	SourceFile    SampleSource = 1
	SourceDefault SampleSource = 2
	SourceLayer   SampleSource = 3
	SourceCustom  SampleSource = 6
)

// SampleConfig is the sampler input for one decision.
type SampleConfig struct {
	Mode   TracingMode
	Rate   int
	Source SampleSource
}

// Validate rejects out-of-range modes and rates.
func (c SampleConfig) Validate() error {
	if c.Mode < ModeAlways || c.Mode > ModeNever {
		return fmt.Errorf("%w: invalid tracing mode %d", ErrInvalidSampleConfiguration, int(c.Mode))
	}
	if c.Rate < 0 || c.Rate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d out of range [0, %d]", ErrInvalidSampleConfiguration, c.Rate, MaxSampleRate)
	}
	return nil
}

// Decision is the outcome of a sampling decision.
type Decision struct {
	Sample    bool
	Continued bool // inherited from a parent, the sampler was not consulted
	Rate      int
	Source    SampleSource
}

// Sampler decides whether a new trace is recorded.
// Implementations must reject invalid configuration with
// ErrInvalidSampleConfiguration.
type Sampler interface {
	Decide(layer string, parent Metadata, cfg SampleConfig) (Decision, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(layer string, parent Metadata, cfg SampleConfig) (Decision, error)

// Decide calls f.
func (f SamplerFunc) Decide(layer string, parent Metadata, cfg SampleConfig) (Decision, error) {
	return f(layer, parent, cfg)
}

// Decide makes the sampling decision for an entry event.
// A valid parent is continued with its own sampled flag and the sampler is
// never consulted; only a fresh root is handed to s.
func Decide(s Sampler, layer string, parent Metadata, cfg SampleConfig) (Decision, error) {
	if parent.IsValid() {
		return Decision{Sample: parent.Sampled(), Continued: true}, nil
	}
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}
	if s == nil {
		s = &RateSampler{}
	}
	d, err := s.Decide(layer, parent, cfg)
	if err != nil {
		return Decision{}, err
	}
	d.Continued = false
	return d, nil
}

// AlwaysSampler records every new trace.
type AlwaysSampler struct{}

// Decide always samples.
func (AlwaysSampler) Decide(_ string, _ Metadata, cfg SampleConfig) (Decision, error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}
	return Decision{Sample: true, Rate: MaxSampleRate, Source: cfg.Source}, nil
}

// NeverSampler records no new trace.
type NeverSampler struct{}

// Decide never samples.
func (NeverSampler) Decide(_ string, _ Metadata, cfg SampleConfig) (Decision, error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}
	return Decision{Sample: false, Rate: 0, Source: cfg.Source}, nil
}

// RateSampler samples new traces with probability Rate/MaxSampleRate,
// honoring the tracing mode.
type RateSampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	once sync.Once
}

// NewRateSampler creates a rate sampler with its own random source.
func NewRateSampler() *RateSampler {
	s := &RateSampler{}
	s.init()
	return s
}

func (s *RateSampler) init() {
	s.once.Do(func() {
		s.rng = rand.New(rand.NewSource(rand.Int63()))
	})
}

// Decide samples based on the configured mode and rate.
func (s *RateSampler) Decide(_ string, _ Metadata, cfg SampleConfig) (Decision, error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}

	d := Decision{Rate: cfg.Rate, Source: cfg.Source}
	if cfg.Mode != ModeAlways {
		return d, nil
	}

	s.init()
	s.mu.Lock()
	d.Sample = s.rng.Intn(MaxSampleRate) < cfg.Rate
	s.mu.Unlock()

	return d, nil
}
