package results

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cepro/flexarea/montecarlo"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CSV column names of a flexibility area.
const (
	ColumnFeasibleP   = "x flex"
	ColumnFeasibleQ   = "y flex"
	ColumnInfeasibleP = "x non-flex"
	ColumnInfeasibleQ = "y non-flex"
)

// padded returns values extended with NaN up to length n.
func padded(values []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, values)
	for i := len(values); i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}

// Frame returns the flexibility area as a data frame with one column per P/Q list. The shorter of the feasible and
// infeasible sets is padded with NaN.
func Frame(outcome montecarlo.Outcome) dataframe.DataFrame {
	feasibleP, feasibleQ := montecarlo.PQ(outcome.Feasible)
	infeasibleP, infeasibleQ := montecarlo.PQ(outcome.Infeasible)
	rows := len(feasibleP)
	if len(infeasibleP) > rows {
		rows = len(infeasibleP)
	}

	return dataframe.New(
		series.New(padded(feasibleP, rows), series.Float, ColumnFeasibleP),
		series.New(padded(feasibleQ, rows), series.Float, ColumnFeasibleQ),
		series.New(padded(infeasibleP, rows), series.Float, ColumnInfeasibleP),
		series.New(padded(infeasibleQ, rows), series.Float, ColumnInfeasibleQ),
	)
}

// WriteCSV writes the flexibility area of the outcome as CSV.
func WriteCSV(w io.Writer, outcome montecarlo.Outcome) error {
	err := Frame(outcome).WriteCSV(w)
	if err != nil {
		return fmt.Errorf("write flexibility area csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the flexibility area of the outcome to the given path.
func WriteCSVFile(path string, outcome montecarlo.Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	err = WriteCSV(f, outcome)
	if err != nil {
		return err
	}
	return f.Close()
}

// ReadCSV reads a flexibility area written by WriteCSV, dropping the NaN padding.
func ReadCSV(r io.Reader) (feasibleP, feasibleQ, infeasibleP, infeasibleQ []float64, err error) {
	df := dataframe.ReadCSV(r, dataframe.WithTypes(map[string]series.Type{
		ColumnFeasibleP:   series.Float,
		ColumnFeasibleQ:   series.Float,
		ColumnInfeasibleP: series.Float,
		ColumnInfeasibleQ: series.Float,
	}))
	if df.Err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read flexibility area csv: %w", df.Err)
	}

	column := func(name string) []float64 {
		var values []float64
		for _, v := range df.Col(name).Float() {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		return values
	}
	return column(ColumnFeasibleP), column(ColumnFeasibleQ), column(ColumnInfeasibleP), column(ColumnInfeasibleQ), nil
}
