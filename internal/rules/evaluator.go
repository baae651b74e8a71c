package rules

import (
	"errors"
	"fmt"

	"backtestgpt/internal/domain"
)

// Evaluate resolves both operands of a rule and produces a boolean signal
// series over the context's date index. Unresolved references degrade to
// zero-filled series; their raw text is returned so the caller can surface
// them as diagnostics. The only hard error is an unknown operator.
func Evaluate(rule domain.RuleExpr, ctx *Context) (signal []bool, unresolved []string, err error) {
	left, lerr := ctx.Resolve(rule.Args[0])
	right, rerr := ctx.Resolve(rule.Args[1])
	for _, resolveErr := range []error{lerr, rerr} {
		var unres *UnresolvedRefError
		if errors.As(resolveErr, &unres) {
			unresolved = append(unresolved, unres.Ref)
		}
	}

	signal = make([]bool, ctx.Len())
	switch rule.Op {
	case domain.OpCrossAbove:
		// Fires only on the transition from at-or-below to strictly above.
		// The first position has no prior and is always false.
		for t := 1; t < ctx.Len(); t++ {
			signal[t] = left.At(t) > right.At(t) && left.At(t-1) <= right.At(t-1)
		}
	case domain.OpCrossBelow:
		for t := 1; t < ctx.Len(); t++ {
			signal[t] = left.At(t) < right.At(t) && left.At(t-1) >= right.At(t-1)
		}
	case domain.OpGreaterThan:
		pointwise(signal, left, right, func(l, r float64) bool { return l > r })
	case domain.OpLessThan:
		pointwise(signal, left, right, func(l, r float64) bool { return l < r })
	case domain.OpEqualTo:
		pointwise(signal, left, right, func(l, r float64) bool { return l == r })
	case domain.OpGreaterOrEqual:
		pointwise(signal, left, right, func(l, r float64) bool { return l >= r })
	case domain.OpLessOrEqual:
		pointwise(signal, left, right, func(l, r float64) bool { return l <= r })
	default:
		return nil, unresolved, fmt.Errorf("unknown operator %q", rule.Op)
	}
	return signal, unresolved, nil
}

func pointwise(dst []bool, left, right Series, cmp func(l, r float64) bool) {
	for t := range dst {
		dst[t] = cmp(left.At(t), right.At(t))
	}
}
