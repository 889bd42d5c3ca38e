package field

import "testing"

func TestCombinationCloneIsolation(t *testing.T) {
	orig := Combination{"price": {Kind: KindNumeric, Value: 430, Label: "Price"}}
	clone := orig.Clone()

	orig["price"] = Entry{Kind: KindNumeric, Value: 999, Label: "Price"}
	orig["extra"] = Entry{Kind: KindNumeric, Value: 1}

	if clone["price"].Value != 430 {
		t.Fatalf("clone changed with original: %f", clone["price"].Value)
	}
	if _, ok := clone["extra"]; ok {
		t.Fatal("clone gained a key added to the original")
	}

	var nilCombo Combination
	if c := nilCombo.Clone(); c == nil || len(c) != 0 {
		t.Fatalf("nil clone = %#v", c)
	}
}

func TestCombinationEqual(t *testing.T) {
	a := Combination{
		"price": {Kind: KindNumeric, Value: 430},
		"shift": {Kind: KindChoice, Option: "2"},
	}
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatal("clone should be equal")
	}
	b["price"] = Entry{Kind: KindNumeric, Value: 430.001}
	if !a.Equal(b) {
		t.Fatal("sub-cent difference should compare equal")
	}
	b["price"] = Entry{Kind: KindNumeric, Value: 431}
	if a.Equal(b) {
		t.Fatal("different value should not be equal")
	}
	c := a.Clone()
	c["shift"] = Entry{Kind: KindChoice, Option: "1"}
	if a.Equal(c) {
		t.Fatal("different option should not be equal")
	}
	if a.Equal(Combination{}) {
		t.Fatal("different sizes should not be equal")
	}
}

func TestCapture(t *testing.T) {
	fields := []Descriptor{
		{ID: "price", Label: "Price", Kind: KindNumeric, Value: 500},
		{ID: "shift", Label: "Shift", Kind: KindChoice, Selected: "2"},
	}
	c := Capture(fields)
	if c["price"].Value != 500 || c["price"].Label != "Price" {
		t.Errorf("price entry = %+v", c["price"])
	}
	if c["shift"].Option != "2" || c["shift"].Kind != KindChoice {
		t.Errorf("shift entry = %+v", c["shift"])
	}
}
