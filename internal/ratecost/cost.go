package ratecost

import "fmt"

// Estimate is a bounded cost projection: a range plus a confidence
// label, grounded on internal/supervisor/decision.go's
// HoursPerCriticalFinding-style constant-table estimation, generalized
// from effort-hours to dollar cost.
type Estimate struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Confidence string  `json:"confidence"` // low, medium, high
}

// pricing is a model -> {per-1k-token-input, per-1k-token-output} table.
// Real operators configure this from internal/config; this table holds
// the defaults a fresh install ships with.
type modelPricing struct {
	inputPer1K  float64
	outputPer1K float64
}

var defaultPricing = map[string]modelPricing{
	"claude-sonnet": {inputPer1K: 0.003, outputPer1K: 0.015},
	"claude-opus":   {inputPer1K: 0.015, outputPer1K: 0.075},
	"claude-haiku":  {inputPer1K: 0.0008, outputPer1K: 0.004},
	"gpt-4o":        {inputPer1K: 0.005, outputPer1K: 0.015},
}

// Estimator projects task cost from a model name and a token-count
// range, registered per-model so operators can override defaults.
type Estimator struct {
	pricing map[string]modelPricing
}

// NewEstimator returns an Estimator seeded with default pricing.
func NewEstimator() *Estimator {
	pricing := make(map[string]modelPricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}
	return &Estimator{pricing: pricing}
}

// SetPricing overrides (or adds) the per-1k-token rates for model.
func (e *Estimator) SetPricing(model string, inputPer1K, outputPer1K float64) {
	e.pricing[model] = modelPricing{inputPer1K: inputPer1K, outputPer1K: outputPer1K}
}

// Models returns the names of every model with registered pricing, for
// the tool router's provider.models discovery call.
func (e *Estimator) Models() []string {
	out := make([]string, 0, len(e.pricing))
	for name := range e.pricing {
		out = append(out, name)
	}
	return out
}

// Estimate projects a cost range for a task expected to consume between
// minTokens and maxTokens total tokens, split evenly input/output as a
// simplifying assumption when the caller has no finer breakdown.
func (e *Estimator) Estimate(model string, minTokens, maxTokens int) (Estimate, error) {
	p, ok := e.pricing[model]
	if !ok {
		return Estimate{}, fmt.Errorf("ratecost: no pricing registered for model %q", model)
	}
	if minTokens < 0 || maxTokens < minTokens {
		return Estimate{}, fmt.Errorf("ratecost: invalid token range [%d, %d]", minTokens, maxTokens)
	}

	avgPer1K := (p.inputPer1K + p.outputPer1K) / 2
	confidence := "high"
	spread := maxTokens - minTokens
	switch {
	case maxTokens == 0:
		confidence = "low"
	case spread > maxTokens/2:
		confidence = "low"
	case spread > maxTokens/5:
		confidence = "medium"
	}

	return Estimate{
		Min:        float64(minTokens) / 1000 * avgPer1K,
		Max:        float64(maxTokens) / 1000 * avgPer1K,
		Confidence: confidence,
	}, nil
}
