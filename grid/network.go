package grid

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidNetwork = errors.New("invalid network")

// GeneratorKind distinguishes the static generators of a network, which matters when resolving which of them act as
// flexibility service providers.
type GeneratorKind string

const (
	GeneratorKindPV GeneratorKind = "pv"
	GeneratorKindWT GeneratorKind = "wt"
)

type Bus struct {
	Index     int     `yaml:"index"`
	Name      string  `yaml:"name"`
	VnKv      float64 `yaml:"vn_kv"`
	InService bool    `yaml:"in_service"`
}

// Line is a pi-model line section between two buses of the same voltage level.
type Line struct {
	Index     int     `yaml:"index"`
	Name      string  `yaml:"name"`
	FromBus   int     `yaml:"from_bus"`
	ToBus     int     `yaml:"to_bus"`
	LengthKm  float64 `yaml:"length_km"`
	ROhmPerKm float64 `yaml:"r_ohm_per_km"`
	XOhmPerKm float64 `yaml:"x_ohm_per_km"`
	CNfPerKm  float64 `yaml:"c_nf_per_km"`
	MaxIKa    float64 `yaml:"max_i_ka"`
	InService bool    `yaml:"in_service"`
}

// Trafo is a two winding transformer, modelled by its short circuit impedance only.
type Trafo struct {
	Index      int     `yaml:"index"`
	Name       string  `yaml:"name"`
	HVBus      int     `yaml:"hv_bus"`
	LVBus      int     `yaml:"lv_bus"`
	SnMva      float64 `yaml:"sn_mva"`
	VnHvKv     float64 `yaml:"vn_hv_kv"`
	VnLvKv     float64 `yaml:"vn_lv_kv"`
	VkPercent  float64 `yaml:"vk_percent"`
	VkrPercent float64 `yaml:"vkr_percent"`
	InService  bool    `yaml:"in_service"`
}

// Generator is a static generator injecting PMw/QMvar at its bus (generator sign convention).
type Generator struct {
	Index     int           `yaml:"index"`
	Name      string        `yaml:"name"`
	Bus       int           `yaml:"bus"`
	Kind      GeneratorKind `yaml:"kind"`
	PMw       float64       `yaml:"p_mw"`
	QMvar     float64       `yaml:"q_mvar"`
	SnMva     float64       `yaml:"sn_mva"`
	InService bool          `yaml:"in_service"`
}

// Load consumes PMw/QMvar at its bus (consumer sign convention).
type Load struct {
	Index     int     `yaml:"index"`
	Name      string  `yaml:"name"`
	Bus       int     `yaml:"bus"`
	PMw       float64 `yaml:"p_mw"`
	QMvar     float64 `yaml:"q_mvar"`
	SnMva     float64 `yaml:"sn_mva"`
	InService bool    `yaml:"in_service"`
}

// ExtGrid is the connection to the upstream grid, it is the slack bus of every power flow and the point of common
// coupling whose P/Q is characterised.
type ExtGrid struct {
	Bus      int     `yaml:"bus"`
	VmPu     float64 `yaml:"vm_pu"`
	VaDegree float64 `yaml:"va_degree"`
}

// Network holds the grid model and, after a power flow, its results.
// It is owned by one caller at a time: every operation that mutates it does so synchronously.
type Network struct {
	Name       string      `yaml:"name"`
	SnMva      float64     `yaml:"sn_mva"` // system base power
	FHz        float64     `yaml:"f_hz"`
	Buses      []Bus       `yaml:"buses"`
	Lines      []Line      `yaml:"lines"`
	Trafos     []Trafo     `yaml:"trafos"`
	Generators []Generator `yaml:"generators"`
	Loads      []Load      `yaml:"loads"`
	ExtGrid    ExtGrid     `yaml:"ext_grid"`

	Results *Results `yaml:"-"`
}

// Read loads and validates a network file. JSON files are accepted as they are valid YAML.
func Read(path string) (*Network, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}

	net, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse network file %q: %w", path, err)
	}
	return net, nil
}

// Parse decodes a network document. Elements default to being in service unless they say otherwise.
func Parse(content []byte) (*Network, error) {
	net := Network{
		SnMva:   1,
		FHz:     50,
		ExtGrid: ExtGrid{VmPu: 1},
	}
	err := yaml.Unmarshal(content, &net)
	if err != nil {
		return nil, fmt.Errorf("unmarshal network: %w", err)
	}

	err = net.Validate()
	if err != nil {
		return nil, err
	}
	return &net, nil
}

// Validate checks the structural consistency of the network, returning one error per problem found.
func (n *Network) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidNetwork}, args...)...))
	}

	if n.SnMva <= 0 {
		fail("sn_mva must be positive, got %v", n.SnMva)
	}
	if n.FHz <= 0 {
		fail("f_hz must be positive, got %v", n.FHz)
	}
	if len(n.Buses) == 0 {
		fail("no buses")
	}
	for i, bus := range n.Buses {
		if bus.Index != i {
			fail("bus %d has index %d, indices must be contiguous from 0", i, bus.Index)
		}
		if bus.VnKv <= 0 {
			fail("bus %d: vn_kv must be positive", i)
		}
	}
	hasBus := func(b int) bool { return b >= 0 && b < len(n.Buses) }

	for i, line := range n.Lines {
		if line.Index != i {
			fail("line %d has index %d, indices must be contiguous from 0", i, line.Index)
		}
		if !hasBus(line.FromBus) || !hasBus(line.ToBus) {
			fail("line %d connects unknown bus", i)
		}
		if line.LengthKm <= 0 || line.MaxIKa <= 0 {
			fail("line %d: length_km and max_i_ka must be positive", i)
		}
		if line.ROhmPerKm == 0 && line.XOhmPerKm == 0 {
			fail("line %d: zero impedance", i)
		}
	}
	for i, trafo := range n.Trafos {
		if trafo.Index != i {
			fail("trafo %d has index %d, indices must be contiguous from 0", i, trafo.Index)
		}
		if !hasBus(trafo.HVBus) || !hasBus(trafo.LVBus) {
			fail("trafo %d connects unknown bus", i)
		}
		if trafo.SnMva <= 0 || trafo.VkPercent <= 0 || trafo.VkrPercent < 0 || trafo.VkrPercent > trafo.VkPercent {
			fail("trafo %d: requires sn_mva > 0 and 0 <= vkr_percent <= vk_percent, vk_percent > 0", i)
		}
	}
	for i, gen := range n.Generators {
		if gen.Index != i {
			fail("generator %d has index %d, indices must be contiguous from 0", i, gen.Index)
		}
		if !hasBus(gen.Bus) {
			fail("generator %d connects unknown bus %d", i, gen.Bus)
		}
		if gen.SnMva <= 0 {
			fail("generator %d: sn_mva must be positive", i)
		}
		if gen.Kind != GeneratorKindPV && gen.Kind != GeneratorKindWT {
			fail("generator %d: kind must be %q or %q, got %q", i, GeneratorKindPV, GeneratorKindWT, gen.Kind)
		}
	}
	for i, load := range n.Loads {
		if load.Index != i {
			fail("load %d has index %d, indices must be contiguous from 0", i, load.Index)
		}
		if !hasBus(load.Bus) {
			fail("load %d connects unknown bus %d", i, load.Bus)
		}
		if load.SnMva < 0 {
			fail("load %d: sn_mva must not be negative", i)
		}
	}
	if !hasBus(n.ExtGrid.Bus) {
		fail("ext_grid connects unknown bus %d", n.ExtGrid.Bus)
	}
	if n.ExtGrid.VmPu <= 0 {
		fail("ext_grid vm_pu must be positive")
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy of the network, including any results.
func (n *Network) Clone() *Network {
	c := *n
	c.Buses = append([]Bus(nil), n.Buses...)
	c.Lines = append([]Line(nil), n.Lines...)
	c.Trafos = append([]Trafo(nil), n.Trafos...)
	c.Generators = append([]Generator(nil), n.Generators...)
	c.Loads = append([]Load(nil), n.Loads...)
	if n.Results != nil {
		c.Results = n.Results.clone()
	}
	return &c
}

// ScaleGeneration multiplies the setpoint of every generator by the factor for its kind.
func (n *Network) ScaleGeneration(scalePV, scaleWT float64) {
	for i := range n.Generators {
		scale := scalePV
		if n.Generators[i].Kind == GeneratorKindWT {
			scale = scaleWT
		}
		n.Generators[i].PMw *= scale
		n.Generators[i].QMvar *= scale
	}
}
