package coding

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/vendorresolver"
)

// TransformContext carries the optional evaluators that back the
// extensibility transforms (`transform=cel`, `transform=wasm`). Its
// zero value disables both: rules using those transforms then resolve
// to a miss, falling to DefaultValue or missing_dimensions like any
// other unresolvable rule. WASMModules maps the module key a rule's
// TransformParams["module"] names to the compiled module's bytes,
// typically loaded once per tenant from pkg/artifacts.
type TransformContext struct {
	Context     context.Context
	CEL         *CELTransformEvaluator
	WASM        *WASMTransformEvaluator
	WASMModules map[string][]byte
}

func (tc TransformContext) ctx() context.Context {
	if tc.Context != nil {
		return tc.Context
	}
	return context.Background()
}

// SourceData supplies the field values DimensionRule.SourceField can
// reference ({invoice, statement, entity, vendor}, spec.md §4.6). Line
// fields are resolved separately per line item since they vary within
// one invoice.
type SourceData struct {
	Invoice   map[string]string
	Statement map[string]string
	Entity    map[string]string
	Vendor    map[string]string
}

func (d SourceData) lookup(source, field string) (string, bool) {
	var m map[string]string
	switch source {
	case "invoice":
		m = d.Invoice
	case "statement":
		m = d.Statement
	case "entity":
		m = d.Entity
	case "vendor":
		m = d.Vendor
	default:
		return "", false
	}
	v, ok := m[field]
	return v, ok
}

// dateLayouts are tried in order when a yyyy/yyyy_mm transform needs to
// parse its source value.
var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006"}

// EvaluateRule resolves one DimensionRule's value against invoice,
// source, and the current line's own fields (description/category),
// applying its transform. Returns ("", false) when the rule yields no
// value and has no default — the caller emits this into
// missing_dimensions if the rule is required.
func EvaluateRule(rule domain.DimensionRule, source SourceData, lineFields map[string]string, tcs ...TransformContext) (string, bool) {
	var tc TransformContext
	if len(tcs) > 0 {
		tc = tcs[0]
	}

	raw, ok := resolveSourceField(rule.SourceField, source, lineFields)
	if !ok || strings.TrimSpace(raw) == "" {
		if rule.DefaultValue != "" {
			return rule.DefaultValue, true
		}
		return "", false
	}

	value := applyTransform(rule.Transform, raw, rule.TransformParams, tc)
	if value == "" {
		if rule.DefaultValue != "" {
			return rule.DefaultValue, true
		}
		return "", false
	}
	return value, true
}

func resolveSourceField(sourceField string, source SourceData, lineFields map[string]string) (string, bool) {
	parts := strings.SplitN(sourceField, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	src, field := parts[0], parts[1]
	if src == "line" {
		v, ok := lineFields[field]
		return v, ok
	}
	return source.lookup(src, field)
}

func applyTransform(transform, value string, params map[string]string, tc TransformContext) string {
	switch transform {
	case "", "none":
		return value
	case "uppercase":
		return strings.ToUpper(value)
	case "normalize":
		return vendorresolver.Normalize(value)
	case "yyyy_mm":
		if t, ok := parseDate(value); ok {
			return t.Format("2006-01")
		}
		return ""
	case "yyyy":
		if t, ok := parseDate(value); ok {
			return t.Format("2006")
		}
		return ""
	case "prefix":
		return params["value"] + value
	case "suffix":
		return value + params["value"]
	case "truncate":
		n, err := strconv.Atoi(params["length"])
		if err != nil || n < 0 || n >= len(value) {
			return value
		}
		return value[:n]
	case "map":
		if mapped, ok := params[value]; ok {
			return mapped
		}
		return ""
	case "cel":
		if tc.CEL == nil {
			return ""
		}
		out, err := tc.CEL.Evaluate(tc.ctx(), params["expr"], value)
		if err != nil {
			return ""
		}
		return out
	case "wasm":
		if tc.WASM == nil {
			return ""
		}
		moduleKey := params["module"]
		wasmBytes, ok := tc.WASMModules[moduleKey]
		if !ok {
			return ""
		}
		out, err := tc.WASM.Transform(tc.ctx(), moduleKey, wasmBytes, value)
		if err != nil {
			return ""
		}
		return out
	default:
		return value
	}
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
