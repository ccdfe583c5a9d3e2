package runtime

import (
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
)

// Visible decides whether an effective node renders.
// While the node is effectively loading it is always visible: the renderer
// shows its placeholder instead of evaluating bindings against partial data.
func (r *Resolver) Visible(v *domain.Visibility, scope expr.Scope, loading bool) bool {
	if loading || v == nil {
		return true
	}
	if src := strings.TrimSpace(v.Expression); src != "" {
		return expr.Truthy(r.expression(src, scope))
	}
	if len(v.Conditions) > 0 {
		return r.conds.All(v.Conditions, v.ConditionLogic, scope)
	}
	return !v.Hidden
}

// expression evaluates a braced template or a bare expression.
// Failures are logged and read as undefined.
func (r *Resolver) expression(src string, scope expr.Scope) any {
	if expr.HasPlaceholder(src) {
		return r.eval.Resolve(src, scope)
	}
	v, err := r.eval.Evaluate(src, scope)
	if err != nil {
		r.logger.Warn("expression failed", "expr", src, "error", err)
		return nil
	}
	return v
}
