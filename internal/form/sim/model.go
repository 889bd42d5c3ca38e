package sim

import (
	"math"
	"strconv"
)

// ScoreFunc computes metric readings from applied decisions. Inputs and
// choices are keyed by field id. Keys follow the measure package names
// (eps, net_revenue, profit, ...); a NaN or missing eps renders as
// unreadable.
type ScoreFunc func(inputs map[string]float64, choices map[string]string) map[string]float64

const (
	unitCost         = 80.0
	priceSensitivity = 250.0
	sharesOut        = 2000.0
	totalAssets      = 40000.0
	startingCash     = 5000.0
	capacityPerShift = 250.0
	shiftCost        = 1500.0
)

// CameraModel is the default demand model: each region sells
// market·exp(−price/250) units lifted by diminishing returns on support,
// advertising and web displays, capped by production capacity.
func CameraModel(inputs map[string]float64, choices map[string]string) map[string]float64 {
	shifts := 1.0
	if s, err := strconv.ParseFloat(choices["shifts"], 64); err == nil && s >= 1 {
		shifts = s
	}

	var units, revenue, contribution, spend, support float64
	perRegion := make([]float64, len(regions))
	for i, r := range regions {
		price := inputs[regionInput(r.code, "price")]
		sup := math.Max(inputs[regionInput(r.code, "support")], 0)
		adv := math.Max(inputs[regionInput(r.code, "advertising")], 0)
		disp := math.Max(inputs[regionInput(r.code, "displays")], 0)

		lift := (1 + 0.25*math.Log1p(sup/1000)) *
			(1 + 0.30*math.Log1p(adv/1000)) *
			(1 + 0.15*math.Log1p(disp/500))
		perRegion[i] = r.market * math.Exp(-price/priceSensitivity) * lift
		units += perRegion[i]
		spend += sup + adv + disp
		support += sup
	}

	scale := 1.0
	if capacity := capacityPerShift * shifts; units > capacity {
		scale = capacity / units
	}
	for i, r := range regions {
		sold := perRegion[i] * scale
		price := inputs[regionInput(r.code, "price")]
		revenue += price * sold
		contribution += (price - unitCost) * sold
	}
	units *= scale

	profit := contribution - spend - shiftCost*(shifts-1)
	eps := profit / sharesOut
	return map[string]float64{
		"eps":          eps,
		"net_revenue":  revenue,
		"profit":       profit,
		"cash":         startingCash + profit,
		"image_rating": 50 + 10*math.Log1p(support/1000),
		"market_share": 100 * units / (units + 500),
		"stock_price":  math.Max(eps*12, 0),
		"roa":          100 * profit / totalAssets,
	}
}
