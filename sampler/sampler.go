package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cepro/flexarea/grid"
)

var ErrUnknownServices = errors.New("unknown flexibility services")

// Services selects which kinds of FSP are perturbed.
type Services string

const (
	ServicesDGOnly   Services = "DG only"
	ServicesLoadOnly Services = "Load only"
	ServicesAll      Services = "All"
)

// Valid returns an error wrapping ErrUnknownServices if s is not one of the supported FSP categories.
func (s Services) Valid() error {
	switch s {
	case ServicesDGOnly, ServicesLoadOnly, ServicesAll:
		return nil
	}
	return fmt.Errorf("%w: %q, choose one of %q", ErrUnknownServices, s, []Services{ServicesAll, ServicesLoadOnly, ServicesDGOnly})
}

// IncludesLoads returns true if profiles for these services address loads after the generators.
func (s Services) IncludesLoads() bool {
	return s == ServicesLoadOnly || s == ServicesAll
}

// Setpoint is the active and reactive power of one FSP.
type Setpoint struct {
	PMw   float64 `json:"p_mw"`
	QMvar float64 `json:"q_mvar"`
}

// Profile is one candidate operating point: a setpoint per FSP, generators first then flexible loads.
// A profile with a Defect must not be applied to a network.
type Profile struct {
	Setpoints []Setpoint `json:"setpoints"`
	Defect    error      `json:"-"`
}

// join concatenates the setpoints of a generator profile and a load profile.
func join(gen, load Profile) Profile {
	setpoints := make([]Setpoint, 0, len(gen.Setpoints)+len(load.Setpoints))
	setpoints = append(setpoints, gen.Setpoints...)
	setpoints = append(setpoints, load.Setpoints...)
	return Profile{Setpoints: setpoints, Defect: errors.Join(gen.Defect, load.Defect)}
}

func joinAll(gens, loads []Profile) []Profile {
	profiles := make([]Profile, len(gens))
	for i := range gens {
		profiles[i] = join(gens[i], loads[i])
	}
	return profiles
}

// Sampler draws setpoint profiles from one seeded random stream. Calls must be made in the same order to reproduce a
// batch, and a Sampler must not be shared between goroutines.
type Sampler struct {
	rng        *rand.Rand
	loadChange float64
	logger     *slog.Logger
}

// DefaultSeed is the seed of the random stream unless configured otherwise.
const DefaultSeed = 21

func New(seed uint64) *Sampler {
	return &Sampler{
		rng:        rand.New(rand.NewPCG(seed, seed)),
		loadChange: 1,
		logger:     slog.Default().With("component", "sampler"),
	}
}

// WithLoadChange sets the factor that scales every load setpoint, reserved for aggregate load change studies.
func (s *Sampler) WithLoadChange(factor float64) *Sampler {
	s.loadChange = factor
	return s
}

// GeneratorSamples creates profiles for every generator of the network. With keepMP the apparent power stays at the
// rating and only the power factor moves, otherwise P and Q move independently within the rating.
func (s *Sampler) GeneratorSamples(samples int, gens []grid.Generator, dist Distribution, keepMP bool) ([]Profile, time.Duration, error) {
	start := time.Now()

	dof := 2
	if keepMP {
		dof = 1
	}
	raw, err := s.Draw(dist, samples*len(gens), dof)
	if err != nil {
		return nil, 0, fmt.Errorf("draw generator samples: %w", err)
	}

	var profiles []Profile
	if keepMP {
		profiles, err = PowerFactorPoints(gens, raw, samples)
	} else {
		profiles, err = FreePoints(gens, raw, samples)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("project generator samples: %w", err)
	}

	duration := time.Since(start)
	s.logger.Info("Sampled generator profiles", "samples", samples, "distribution", dist, "keep_mp", keepMP, "duration", duration)
	return profiles, duration, nil
}

// LoadSamples creates profiles for the given flexible loads.
func (s *Sampler) LoadSamples(samples int, loads []grid.Load, dist Distribution) ([]Profile, time.Duration, error) {
	start := time.Now()

	raw, err := s.Draw(dist, samples*len(loads), 2)
	if err != nil {
		return nil, 0, fmt.Errorf("draw load samples: %w", err)
	}
	profiles, err := LoadPoints(loads, raw, samples, s.loadChange)
	if err != nil {
		return nil, 0, fmt.Errorf("project load samples: %w", err)
	}

	duration := time.Since(start)
	defective := 0
	for _, profile := range profiles {
		if profile.Defect != nil {
			defective++
			s.logger.Error("Defective load profile", "error", profile.Defect)
		}
	}
	s.logger.Info("Sampled load profiles", "samples", samples, "distribution", dist, "defective", defective, "duration", duration)
	return profiles, duration, nil
}

// Request describes a batch of profiles to create.
type Request struct {
	Samples      int
	Distribution Distribution
	KeepMP       bool
	Services     Services
	FlexLoads    []int // indices of the flexible loads, all loads when empty
}

// Batch is an ordered set of profiles and the total time it took to sample them.
type Batch struct {
	Profiles []Profile
	Duration time.Duration
}

// Profiles creates req.Samples profiles for the FSPs of the network.
//
// For ServicesAll the batch blends four regimes so that the extremes of each FSP kind are explored as well as joint
// moves: half (plus any rounding remainder) varies generators and loads together, an eighth varies only the loads by
// reusing the first joint load draws, and three eighths varies only the generators by reusing the first joint
// generator draws.
func (s *Sampler) Profiles(net *grid.Network, req Request) (Batch, error) {
	if err := req.Services.Valid(); err != nil {
		return Batch{}, err
	}
	if err := req.Distribution.Valid(); err != nil {
		return Batch{}, err
	}
	if req.Samples < 0 {
		return Batch{}, fmt.Errorf("number of samples must not be negative, got %d", req.Samples)
	}

	gens := net.Generators
	if req.Services == ServicesDGOnly {
		profiles, duration, err := s.GeneratorSamples(req.Samples, gens, req.Distribution, req.KeepMP)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Profiles: profiles, Duration: duration}, nil
	}

	loads, err := net.SelectLoads(req.FlexLoads)
	if err != nil {
		return Batch{}, fmt.Errorf("select flexible loads: %w", err)
	}

	if req.Services == ServicesLoadOnly {
		genProfiles, genDuration, err := s.GeneratorSamples(req.Samples, gens, DistributionNoChange, req.KeepMP)
		if err != nil {
			return Batch{}, err
		}
		loadProfiles, loadDuration, err := s.LoadSamples(req.Samples, loads, req.Distribution)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Profiles: joinAll(genProfiles, loadProfiles), Duration: genDuration + loadDuration}, nil
	}

	eighth := req.Samples / 8
	threeEighths := 3 * req.Samples / 8
	joint := req.Samples - eighth - threeEighths

	genProfiles, genDuration, err := s.GeneratorSamples(joint, gens, req.Distribution, req.KeepMP)
	if err != nil {
		return Batch{}, err
	}
	loadProfiles, loadDuration, err := s.LoadSamples(joint, loads, req.Distribution)
	if err != nil {
		return Batch{}, err
	}
	fixedGenProfiles, fixedGenDuration, err := s.GeneratorSamples(eighth, gens, DistributionNoChange, req.KeepMP)
	if err != nil {
		return Batch{}, err
	}
	fixedLoadProfiles, fixedLoadDuration, err := s.LoadSamples(threeEighths, loads, DistributionNoChange)
	if err != nil {
		return Batch{}, err
	}

	profiles := make([]Profile, 0, req.Samples)
	profiles = append(profiles, joinAll(genProfiles, loadProfiles)...)
	profiles = append(profiles, joinAll(fixedGenProfiles, loadProfiles[:eighth])...)
	profiles = append(profiles, joinAll(genProfiles[:threeEighths], fixedLoadProfiles)...)

	return Batch{
		Profiles: profiles,
		Duration: genDuration + loadDuration + fixedGenDuration + fixedLoadDuration,
	}, nil
}
