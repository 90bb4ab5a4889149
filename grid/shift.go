package grid

import "fmt"

// LoadShift changes the consumption of one load by the given deltas.
type LoadShift struct {
	Load   int     `yaml:"load" mapstructure:"load"`
	DPMw   float64 `yaml:"dp_mw" mapstructure:"dp_mw"`
	DQMvar float64 `yaml:"dq_mvar" mapstructure:"dq_mvar"`
}

// BranchState switches a line or transformer in or out of service.
type BranchState struct {
	Index     int  `yaml:"index" mapstructure:"index"`
	InService bool `yaml:"in_service" mapstructure:"in_service"`
}

// Shift describes an operating scenario that moves the network away from its initial state, e.g. unexpected load
// changes or a topology change after a fault.
type Shift struct {
	Name   string        `yaml:"name" mapstructure:"name"`
	Number int           `yaml:"no." mapstructure:"no."` // label only, the lists below define the shift
	Loads  []LoadShift   `yaml:"loads" mapstructure:"loads"`
	Lines  []BranchState `yaml:"lines" mapstructure:"lines"`
	Trafos []BranchState `yaml:"trafos" mapstructure:"trafos"`
}

// Label identifies the shift in logs and stored runs, e.g. "USS 1".
func (s Shift) Label() string {
	if s.Number == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s %d", s.Name, s.Number)
}

// IsEmpty returns true if applying the shift would change nothing.
func (s Shift) IsEmpty() bool {
	return len(s.Loads) == 0 && len(s.Lines) == 0 && len(s.Trafos) == 0
}

// ApplyShift applies the scenario shift to the network. Nothing is changed if any element is unknown.
func (n *Network) ApplyShift(shift Shift) error {
	for _, ls := range shift.Loads {
		if ls.Load < 0 || ls.Load >= len(n.Loads) {
			return fmt.Errorf("%w: shift references unknown load %d", ErrInvalidNetwork, ls.Load)
		}
	}
	for _, bs := range shift.Lines {
		if bs.Index < 0 || bs.Index >= len(n.Lines) {
			return fmt.Errorf("%w: shift references unknown line %d", ErrInvalidNetwork, bs.Index)
		}
	}
	for _, bs := range shift.Trafos {
		if bs.Index < 0 || bs.Index >= len(n.Trafos) {
			return fmt.Errorf("%w: shift references unknown trafo %d", ErrInvalidNetwork, bs.Index)
		}
	}

	for _, ls := range shift.Loads {
		n.Loads[ls.Load].PMw += ls.DPMw
		n.Loads[ls.Load].QMvar += ls.DQMvar
	}
	for _, bs := range shift.Lines {
		n.Lines[bs.Index].InService = bs.InService
	}
	for _, bs := range shift.Trafos {
		n.Trafos[bs.Index].InService = bs.InService
	}
	return nil
}
