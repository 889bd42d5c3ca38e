package improvement

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

func TestStepExplorerNeighbors(t *testing.T) {
	e := NewStepExplorer(2)
	price := field.Classification{Min: 75, Max: 1000}

	tests := []struct {
		name    string
		current float64
		step    float64
		want    []float64
	}{
		{"interior", 500, 100, []float64{400, 600}},
		{"clamped low", 100, 50, []float64{75, 150}},
		{"at min", 75, 25, []float64{100}},
		{"at max", 1000, 1, []float64{999}},
		{"step below precision", 430, 0.001, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Neighbors(tt.current, tt.step, price)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Neighbors mismatch (-want +got):\n%s", diff)
			}
			for _, v := range got {
				if v < price.Min || v > price.Max {
					t.Fatalf("candidate %f outside range", v)
				}
			}
		})
	}
}

func TestStepExplorerSweep(t *testing.T) {
	e := NewStepExplorer(2)
	cls := field.Classification{Min: 0, Max: 1000, Sweep: []float64{0, 500, 1500, 1000, 500}}
	want := []float64{0, 500, 1000}
	if diff := cmp.Diff(want, e.Sweep(cls)); diff != "" {
		t.Fatalf("Sweep mismatch (-want +got):\n%s", diff)
	}
	if got := e.Sweep(field.Classification{Max: 10}); len(got) != 0 {
		t.Fatalf("expected no sweep candidates, got %v", got)
	}
}
