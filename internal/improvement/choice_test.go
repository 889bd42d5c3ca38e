package improvement

import (
	"context"
	"testing"
)

func TestChoiceSearchKeepsStrictBest(t *testing.T) {
	scores := map[string]float64{"1": 5, "2": 7, "3": 7}
	live := "1"
	var tried []string
	trial := func(_ context.Context, option string) (Reading, error) {
		tried = append(tried, option)
		live = option
		return Reading{Score: scores[option], OK: true}, nil
	}

	var cs ChoiceSearch
	res, err := cs.Optimize(context.Background(), "shifts", "1", []string{"1", "2", "3"}, Reading{Score: 5, OK: true}, trial, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Option != "2" || !res.Improved {
		t.Fatalf("expected option 2 (first of the tied best), got %+v", res)
	}
	if live != "2" {
		t.Fatalf("page left on option %s", live)
	}
	want := []string{"2", "3", "2"}
	if len(tried) != len(want) {
		t.Fatalf("tried %v, want %v", tried, want)
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Fatalf("tried %v, want %v", tried, want)
		}
	}
}

func TestChoiceSearchRestoresSelection(t *testing.T) {
	live := "2"
	trial := func(_ context.Context, option string) (Reading, error) {
		live = option
		if option == "3" {
			return Reading{}, nil
		}
		return Reading{Score: 1, OK: true}, nil
	}
	var cs ChoiceSearch
	res, err := cs.Optimize(context.Background(), "shifts", "2", []string{"1", "2", "3"}, Reading{Score: 4, OK: true}, trial, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Improved || res.Option != "2" || live != "2" {
		t.Fatalf("expected selection restored to 2: res=%+v live=%s", res, live)
	}
	if res.Unreadable != 1 || res.State != StateConverged {
		t.Fatalf("unexpected result: %+v", res)
	}
}
