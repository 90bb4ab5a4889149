package grid

import "gopkg.in/yaml.v3"

// The UnmarshalYAML methods below make `in_service` opt-out, as it is in the network files written by hand.

func (b *Bus) UnmarshalYAML(value *yaml.Node) error {
	type plain Bus
	p := plain{InService: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = Bus(p)
	return nil
}

func (l *Line) UnmarshalYAML(value *yaml.Node) error {
	type plain Line
	p := plain{InService: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = Line(p)
	return nil
}

func (t *Trafo) UnmarshalYAML(value *yaml.Node) error {
	type plain Trafo
	p := plain{InService: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Trafo(p)
	return nil
}

func (g *Generator) UnmarshalYAML(value *yaml.Node) error {
	type plain Generator
	p := plain{InService: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*g = Generator(p)
	return nil
}

func (l *Load) UnmarshalYAML(value *yaml.Node) error {
	type plain Load
	p := plain{InService: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = Load(p)
	return nil
}
