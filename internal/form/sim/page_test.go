package sim

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

func TestPageRendersDiscoverableForm(t *testing.T) {
	p := New()
	doc, err := p.HTML(context.Background())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}

	fields, err := field.Discover(doc, field.DiscoverOptions{
		InputClass:        "input-field",
		IgnoreSelectClass: "entry-assumptions-select",
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	// 16 region inputs, dividend, shifts select
	if len(fields) != 18 {
		t.Fatalf("expected 18 fields, got %d", len(fields))
	}
	if fields[0].ID != "na-price" || fields[0].Label != "N.A. Wholesale Price" || fields[0].Value != 500 {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	last := fields[len(fields)-1]
	if last.Kind != field.KindChoice || last.ID != "shifts" || last.Label != "Production Shifts" {
		t.Errorf("unexpected choice field: %+v", last)
	}

	snap := measure.NewReader(nil).Read(doc)
	want := CameraModel(p.Inputs(), map[string]string{"shifts": "1"})
	eps, ok := snap.Objective()
	if !ok || math.Abs(eps-want["eps"]) > 0.006 {
		t.Fatalf("rendered eps %f (present %v), model %f", eps, ok, want["eps"])
	}
	if snap.Len() != len(metricRows) {
		t.Errorf("expected %d readings, got %v", len(metricRows), snap.Keys())
	}
}

func TestPageEditsApplyOnlyAfterCalculate(t *testing.T) {
	ctx := context.Background()
	p := New()
	before := p.Metrics()["eps"]

	if err := p.SetInput(ctx, "na-price", "330.00"); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if got := p.Metrics()["eps"]; got != before {
		t.Fatalf("metrics changed before Calculate: %f -> %f", before, got)
	}

	pressed, err := p.PressButton(ctx, []string{"calculate"})
	if err != nil || !pressed {
		t.Fatalf("PressButton = %v, %v", pressed, err)
	}
	if got := p.Metrics()["eps"]; got <= before {
		t.Fatalf("expected 330 to beat 500 in N.A., eps %f -> %f", before, got)
	}
	if p.Evaluations() != 2 {
		t.Fatalf("Evaluations() = %d, want 2", p.Evaluations())
	}

	want := []string{"input", "change", "blur", "keydown:Enter", "keyup:Enter"}
	if diff := cmp.Diff(want, p.Signals("na-price")); diff != "" {
		t.Errorf("signals mismatch (-want +got):\n%s", diff)
	}
}

func TestPagePressButtonLabels(t *testing.T) {
	ctx := context.Background()
	p := New()

	pressed, _ := p.PressButton(ctx, []string{"update scores"})
	if pressed {
		t.Fatal("no button reads update scores")
	}
	pressed, _ = p.PressButton(ctx, []string{"save"})
	if !pressed || p.Evaluations() != 1 {
		t.Fatalf("save should press without scoring: pressed=%v evaluations=%d", pressed, p.Evaluations())
	}

	p.SetRecalculate(false)
	pressed, _ = p.PressButton(ctx, []string{"calculate"})
	if pressed {
		t.Fatal("Calculate should be gone")
	}
	doc, _ := p.HTML(ctx)
	if strings.Contains(doc, ">Calculate<") {
		t.Fatal("Calculate button still rendered")
	}
}

func TestPageUnknownFields(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.SetInput(ctx, "nope", "1"); !errors.Is(err, form.ErrFieldNotFound) {
		t.Fatalf("SetInput unknown = %v", err)
	}
	if err := p.SelectOption(ctx, "nope", "1"); !errors.Is(err, form.ErrFieldNotFound) {
		t.Fatalf("SelectOption unknown = %v", err)
	}
	if err := p.SelectOption(ctx, "shifts", "9"); err == nil {
		t.Fatal("expected error for unknown option")
	}
	if err := p.SelectOption(ctx, "shifts", "2"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if p.Selected("shifts") != "2" {
		t.Fatalf("Selected = %s", p.Selected("shifts"))
	}
}

func TestPageBreakObjective(t *testing.T) {
	ctx := context.Background()
	p := New()
	reader := measure.NewReader(nil)

	p.BreakObjective(2)
	for i := 0; i < 2; i++ {
		_, _ = p.PressButton(ctx, []string{"calculate"})
		doc, _ := p.HTML(ctx)
		if _, ok := reader.Read(doc).Objective(); ok {
			t.Fatalf("calculation %d should have an unreadable eps", i)
		}
	}
	_, _ = p.PressButton(ctx, []string{"calculate"})
	doc, _ := p.HTML(ctx)
	if _, ok := reader.Read(doc).Objective(); !ok {
		t.Fatal("eps should be readable again")
	}
}

func TestCameraModelShape(t *testing.T) {
	base := DefaultLayout()
	inputs := make(map[string]float64)
	for _, in := range base.Inputs {
		inputs[in.ID] = in.Value
	}
	choices := map[string]string{"shifts": "2"}
	eps := func(id string, v float64) float64 {
		m := make(map[string]float64, len(inputs))
		for k, x := range inputs {
			m[k] = x
		}
		m[id] = v
		return CameraModel(m, choices)["eps"]
	}

	// price has an interior optimum near unit cost + sensitivity
	if !(eps("na-price", 330) > eps("na-price", 75) && eps("na-price", 330) > eps("na-price", 1000)) {
		t.Fatal("expected an interior price optimum")
	}
	// marketing has diminishing returns
	if !(eps("na-advertising", 3000) > eps("na-advertising", 0) && eps("na-advertising", 3000) > eps("na-advertising", 10000)) {
		t.Fatal("expected an interior advertising optimum")
	}
}

func TestHandler(t *testing.T) {
	p := New()
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status %d", resp.StatusCode)
	}

	form := url.Values{"na-price": {"400.00"}, "shifts": {"2"}, "action": {"Calculate"}}
	resp, err = http.PostForm(srv.URL, form)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST (after redirect) status %d", resp.StatusCode)
	}
	if p.InputText("na-price") != "400.00" || p.Selected("shifts") != "2" {
		t.Fatalf("submission not applied: price=%s shifts=%s", p.InputText("na-price"), p.Selected("shifts"))
	}
	if p.Evaluations() != 2 {
		t.Fatalf("Evaluations() = %d, want 2", p.Evaluations())
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE status %d", resp.StatusCode)
	}
}
