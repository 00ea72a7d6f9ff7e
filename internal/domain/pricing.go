package domain

// modelCosts is the flat per-generation price book, in USD. Unknown
// models cost zero rather than failing the flow.
var modelCosts = map[string]float64{
	"nano-banana":     0.020,
	"nano-banana-pro": 0.090,
	"runway":          0.250,
	"veo3":            0.400,
	"veo3_fast":       0.150,
}

// EstimateCost returns the bookkeeping cost for one generation with the
// given model identifier.
func EstimateCost(model string) float64 {
	return modelCosts[model]
}
