package adjust

import "github.com/danielpatrickdp/review-tuner/internal/params"

// #region apply

// Apply returns a copy of settings with rule applied at priority. It never
// fails: a malformed path, missing operands, or a value of the wrong shape
// yields an unchanged copy with Changed=false.
func Apply(settings params.ParameterSet, rule Rule, priority Priority) (params.ParameterSet, Change) {
	out := settings.Clone()

	layer, key, ok := params.ParsePath(rule.TargetPath)
	if !ok || len(rule.Operands) == 0 {
		return out, Change{}
	}

	from := out.Get(layer, key)
	to := next(from, rule, priority)

	changed := !to.Equal(from)
	if changed {
		out.Set(layer, key, to)
	}
	return out, Change{Changed: changed, From: from, To: to}
}

// next computes the target value for one rule without touching any set.
func next(cur params.Value, rule Rule, priority Priority) params.Value {
	ops := rule.Operands

	switch rule.Action {
	case ActionRecommend:
		if cur.Kind() == params.KindSet {
			return cur
		}
		return params.Scalar(ops[0])

	case ActionRecommendAny:
		if cur.Kind() == params.KindSet {
			return cur
		}
		if s, ok := cur.Str(); ok {
			for _, op := range ops {
				if op == s {
					return cur
				}
			}
		}
		return params.Scalar(ops[0])

	case ActionIncrease:
		if cur.Kind() == params.KindSet {
			return cur
		}
		s, _ := cur.Str()
		idx := -1
		for i, op := range ops {
			if op == s {
				idx = i
				break
			}
		}
		if idx < 0 {
			return params.Scalar(ops[0])
		}
		idx += priority.Steps()
		if idx > len(ops)-1 {
			idx = len(ops) - 1
		}
		return params.Scalar(ops[idx])

	case ActionEnsureNotEmpty:
		if !cur.IsEmpty() {
			return cur
		}
		if cur.Kind() == params.KindSet {
			return params.SetOf(ops[0])
		}
		return params.Scalar(ops[0])

	case ActionEnsureContains:
		// Scalars are not settable collections; With leaves them untouched.
		return cur.With(ops[0])
	}

	return cur
}

// #endregion apply
