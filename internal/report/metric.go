package report

import (
	"math"

	"reporting-service/internal/apperr"
)

type DeriveOp string

const (
	DerivePercent DeriveOp = "percent"
	DeriveRatio   DeriveOp = "ratio"
	DeriveDiff    DeriveOp = "diff"
	DeriveSum     DeriveOp = "sum"
	DeriveProduct DeriveOp = "product"
	DeriveValue   DeriveOp = "value"
)

// Derivation computes one named metric from aggregate values or from other
// derivations. Inputs name either aggregate aliases or derivation names;
// chains are resolved in dependency order and must be acyclic.
type Derivation struct {
	Name   string
	Op     DeriveOp
	Inputs []string
	Digits int
}

// Derive evaluates all derivations over the given aggregate values and
// returns the combined metric map. Division by a denominator <= 0 yields 0,
// never NaN or Inf. Rounding happens once at the output boundary; chained
// derivations consume unrounded intermediates.
func Derive(values map[string]float64, derivations []Derivation) (map[string]float64, error) {
	raw := make(map[string]float64, len(values)+len(derivations))
	for name, v := range values {
		raw[name] = v
	}

	declared := make(map[string]bool, len(derivations))
	for _, d := range derivations {
		if d.Name == "" {
			return nil, apperr.Configuration("derivation with empty name")
		}
		if declared[d.Name] {
			return nil, apperr.Configuration("duplicate derivation %q", d.Name)
		}
		declared[d.Name] = true
	}

	// resolve in passes; anything still pending after a pass with no
	// progress is a cycle
	pending := append([]Derivation(nil), derivations...)
	for len(pending) > 0 {
		progressed := false
		remaining := pending[:0]
		for _, d := range pending {
			if !inputsReady(raw, d.Inputs) {
				remaining = append(remaining, d)
				continue
			}
			value, err := evaluate(raw, d)
			if err != nil {
				return nil, err
			}
			raw[d.Name] = value
			progressed = true
		}
		pending = remaining
		if !progressed {
			for _, d := range pending {
				for _, input := range d.Inputs {
					if _, isValue := raw[input]; !isValue && !declared[input] {
						return nil, apperr.Configuration("derivation %q references unknown input %q", d.Name, input)
					}
				}
			}
			return nil, apperr.Configuration("cyclic metric dependency involving %q", pending[0].Name)
		}
	}

	out := make(map[string]float64, len(raw))
	for name, v := range values {
		out[name] = v
	}
	for _, d := range derivations {
		out[d.Name] = round(raw[d.Name], d.Digits)
	}
	return out, nil
}

func inputsReady(raw map[string]float64, inputs []string) bool {
	for _, input := range inputs {
		if _, ok := raw[input]; !ok {
			return false
		}
	}
	return true
}

func evaluate(raw map[string]float64, d Derivation) (float64, error) {
	operand := func(i int) float64 { return raw[d.Inputs[i]] }

	switch d.Op {
	case DerivePercent:
		if len(d.Inputs) != 2 {
			return 0, apperr.Configuration("derivation %q: percent needs two inputs", d.Name)
		}
		return safeDivide(operand(0), operand(1)) * 100, nil
	case DeriveRatio:
		if len(d.Inputs) != 2 {
			return 0, apperr.Configuration("derivation %q: ratio needs two inputs", d.Name)
		}
		return safeDivide(operand(0), operand(1)), nil
	case DeriveDiff:
		if len(d.Inputs) != 2 {
			return 0, apperr.Configuration("derivation %q: diff needs two inputs", d.Name)
		}
		return operand(0) - operand(1), nil
	case DeriveSum:
		if len(d.Inputs) == 0 {
			return 0, apperr.Configuration("derivation %q: sum needs at least one input", d.Name)
		}
		total := 0.0
		for i := range d.Inputs {
			total += operand(i)
		}
		return total, nil
	case DeriveProduct:
		if len(d.Inputs) == 0 {
			return 0, apperr.Configuration("derivation %q: product needs at least one input", d.Name)
		}
		total := 1.0
		for i := range d.Inputs {
			total *= operand(i)
		}
		return total, nil
	case DeriveValue:
		if len(d.Inputs) != 1 {
			return 0, apperr.Configuration("derivation %q: value needs one input", d.Name)
		}
		return operand(0), nil
	default:
		return 0, apperr.Configuration("derivation %q: unknown op %q", d.Name, d.Op)
	}
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}

func round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	factor := math.Pow(10, float64(digits))
	return math.Round(v*factor) / factor
}
