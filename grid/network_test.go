package grid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNetwork = `
name: test
sn_mva: 1
buses:
  - {index: 0, vn_kv: 110}
  - {index: 1, vn_kv: 20}
  - {index: 2, vn_kv: 20, in_service: false}
lines:
  - {index: 0, from_bus: 1, to_bus: 2, length_km: 1.5, r_ohm_per_km: 0.5, x_ohm_per_km: 0.7, c_nf_per_km: 150, max_i_ka: 0.15}
trafos:
  - {index: 0, hv_bus: 0, lv_bus: 1, sn_mva: 25, vn_hv_kv: 110, vn_lv_kv: 20, vk_percent: 12, vkr_percent: 0.4}
generators:
  - {index: 0, bus: 1, kind: pv, p_mw: 0.02, sn_mva: 0.02}
  - {index: 1, bus: 2, kind: wt, p_mw: 1.5, sn_mva: 1.5}
loads:
  - {index: 0, bus: 1, p_mw: 1.2, q_mvar: 0.3, sn_mva: 1.3}
  - {index: 1, bus: 2, p_mw: 0.4, q_mvar: 0.1, sn_mva: 0.5, in_service: false}
ext_grid: {bus: 0}
`

func TestParse(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)

	assert.Equal(t, "test", net.Name)
	assert.Equal(t, 50.0, net.FHz)
	assert.Equal(t, 1.0, net.ExtGrid.VmPu)
	assert.Len(t, net.Buses, 3)
	assert.True(t, net.Buses[0].InService)
	assert.False(t, net.Buses[2].InService)
	assert.True(t, net.Lines[0].InService)
	assert.True(t, net.Trafos[0].InService)
	assert.Equal(t, GeneratorKindWT, net.Generators[1].Kind)
	assert.True(t, net.Loads[0].InService)
	assert.False(t, net.Loads[1].InService)
	assert.Nil(t, net.Results)
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testNetwork), 0o644))

	net, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, net.Loads, 2)

	_, err = Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {

	subTests := []struct {
		name   string
		modify func(net *Network)
	}{
		{"no buses", func(net *Network) { net.Buses = nil }},
		{"bus index gap", func(net *Network) { net.Buses[1].Index = 5 }},
		{"line to unknown bus", func(net *Network) { net.Lines[0].ToBus = 9 }},
		{"line without rating", func(net *Network) { net.Lines[0].MaxIKa = 0 }},
		{"trafo with vkr above vk", func(net *Network) { net.Trafos[0].VkrPercent = 15 }},
		{"generator without kind", func(net *Network) { net.Generators[0].Kind = "" }},
		{"load at unknown bus", func(net *Network) { net.Loads[1].Bus = -1 }},
		{"ext grid at unknown bus", func(net *Network) { net.ExtGrid.Bus = 3 }},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			net, err := Parse([]byte(testNetwork))
			require.NoError(t, err)
			subTest.modify(net)
			assert.ErrorIs(t, net.Validate(), ErrInvalidNetwork)
		})
	}
}

func TestClone(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)
	net.Results = &Results{Buses: []BusResult{{VmPu: 1}}}

	c := net.Clone()
	c.Generators[0].PMw = 10
	c.Loads[0].InService = false
	c.Results.Buses[0].VmPu = 2

	assert.Equal(t, 0.02, net.Generators[0].PMw)
	assert.True(t, net.Loads[0].InService)
	assert.Equal(t, 1.0, net.Results.Buses[0].VmPu)
}

func TestScaleGeneration(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)

	net.ScaleGeneration(2, 0.5)
	assert.InDelta(t, 0.04, net.Generators[0].PMw, 1e-12)
	assert.InDelta(t, 0.75, net.Generators[1].PMw, 1e-12)
}

func TestSelectLoads(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)

	loads, err := net.SelectLoads(nil)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, 0, loads[0].Index)

	loads, err = net.SelectLoads([]int{1, 0})
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, 1, loads[0].Index)
	assert.Equal(t, 0, loads[1].Index)

	_, err = net.SelectLoads([]int{2})
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}

func TestGeneratorsOfKind(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, net.GeneratorsOfKind(GeneratorKindWT))
	assert.Equal(t, []int{0}, net.GeneratorsOfKind(GeneratorKindPV))
}

func TestApplyShift(t *testing.T) {
	net, err := Parse([]byte(testNetwork))
	require.NoError(t, err)

	assert.True(t, Shift{Name: "nothing"}.IsEmpty())

	shift := Shift{
		Name:   "USS",
		Loads:  []LoadShift{{Load: 0, DPMw: 0.3, DQMvar: -0.1}},
		Lines:  []BranchState{{Index: 0, InService: false}},
		Trafos: []BranchState{{Index: 0, InService: true}},
	}
	assert.False(t, shift.IsEmpty())
	require.NoError(t, net.ApplyShift(shift))
	assert.InDelta(t, 1.5, net.Loads[0].PMw, 1e-12)
	assert.InDelta(t, 0.2, net.Loads[0].QMvar, 1e-12)
	assert.False(t, net.Lines[0].InService)

	// nothing changes when any element is unknown
	bad := Shift{
		Loads: []LoadShift{{Load: 0, DPMw: 1}},
		Lines: []BranchState{{Index: 4}},
	}
	assert.ErrorIs(t, net.ApplyShift(bad), ErrInvalidNetwork)
	assert.InDelta(t, 1.5, net.Loads[0].PMw, 1e-12)
}

func TestShiftLabel(t *testing.T) {

	subTests := []struct {
		name     string
		shift    Shift
		expected string
	}{
		{"numbered", Shift{Name: "USS", Number: 1}, "USS 1"},
		{"unnumbered", Shift{Name: "TSS"}, "TSS"},
		{"empty", Shift{}, ""},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			assert.Equal(t, subTest.expected, subTest.shift.Label())
		})
	}
}
