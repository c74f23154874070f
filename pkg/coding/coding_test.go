package coding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rivieraros/apcore/pkg/domain"
)

func TestCategorize_FirstMatchWins(t *testing.T) {
	assert.Equal(t, CategoryFeed, Categorize("Ration Feed - March"))
	assert.Equal(t, CategoryVet, Categorize("Veterinary services - implant"))
	assert.Equal(t, CategoryYardage, Categorize("Yardage charge"))
	assert.Equal(t, CategoryDeathLoss, Categorize("Death Loss Adjustment"))
	assert.Equal(t, CategoryUncategorized, Categorize("Widget rental"))
	assert.Equal(t, CategoryUncategorized, Categorize(""))
}

func str(s string) *string { return &s }

func TestCodeInvoice_VendorLevelMappingWins(t *testing.T) {
	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Feed charge", Total: str("100.00")}}}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		if level == domain.LevelVendor && vendorID == "v-1" && category == string(CategoryFeed) {
			return domain.GLMapping{Level: domain.LevelVendor, GLAccountRef: "5000-FEED"}, true, nil
		}
		return domain.GLMapping{}, false, nil
	}

	coding := CodeInvoice(inv, "ent-1", "v-1", nil, glLookup, SourceData{})
	assert.True(t, coding.Complete)
	assert.Equal(t, "5000-FEED", coding.LineCodings[0].GLRef)
	assert.Equal(t, domain.LevelVendor, coding.LineCodings[0].MappingLevel)
}

func TestCodeInvoice_FallsBackToEntityThenGlobal(t *testing.T) {
	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Yardage"}}}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		if level == domain.LevelGlobal {
			return domain.GLMapping{Level: domain.LevelGlobal, GLAccountRef: "6000-YARD"}, true, nil
		}
		return domain.GLMapping{}, false, nil
	}

	coding := CodeInvoice(inv, "ent-1", "v-1", nil, glLookup, SourceData{})
	assert.Equal(t, "6000-YARD", coding.LineCodings[0].GLRef)
	assert.Equal(t, domain.LevelGlobal, coding.LineCodings[0].MappingLevel)
	assert.Empty(t, coding.MissingMappings)
}

func TestCodeInvoice_NoMappingFallsToSuspense(t *testing.T) {
	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Feed charge"}}}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		return domain.GLMapping{}, false, nil
	}

	coding := CodeInvoice(inv, "ent-1", "v-1", nil, glLookup, SourceData{})
	assert.False(t, coding.Complete)
	assert.Equal(t, suspenseAccount, coding.LineCodings[0].GLRef)
	assert.Contains(t, coding.MissingMappings, string(CategoryFeed))
}

func TestCodeInvoice_RequiredDimensionMissing(t *testing.T) {
	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Feed charge"}}}
	rules := []domain.DimensionRule{
		{DimensionCode: "COST_CENTER", SourceField: "entity.cost_center", IsRequired: true},
	}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		return domain.GLMapping{Level: level, GLAccountRef: "5000-FEED"}, true, nil
	}

	coding := CodeInvoice(inv, "ent-1", "v-1", rules, glLookup, SourceData{})
	assert.False(t, coding.Complete)
	assert.Contains(t, coding.MissingDimensions, "COST_CENTER")
	assert.Contains(t, coding.LineCodings[0].MissingDimensions, "COST_CENTER")
}

func TestCodeInvoice_DimensionDefaultValueApplied(t *testing.T) {
	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Feed charge"}}}
	rules := []domain.DimensionRule{
		{DimensionCode: "COST_CENTER", SourceField: "entity.cost_center", IsRequired: true, DefaultValue: "DEFAULT-CC"},
	}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		return domain.GLMapping{Level: level, GLAccountRef: "5000-FEED"}, true, nil
	}

	coding := CodeInvoice(inv, "ent-1", "v-1", rules, glLookup, SourceData{})
	assert.True(t, coding.Complete)
	assert.Equal(t, "DEFAULT-CC", coding.LineCodings[0].Dimensions["COST_CENTER"])
}

func TestEvaluateRule_Transforms(t *testing.T) {
	source := SourceData{Invoice: map[string]string{"invoice_date": "2026-03-15"}, Entity: map[string]string{"name": "acme ranch"}}

	v, ok := EvaluateRule(domain.DimensionRule{SourceField: "invoice.invoice_date", Transform: "yyyy_mm"}, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "2026-03", v)

	v, ok = EvaluateRule(domain.DimensionRule{SourceField: "invoice.invoice_date", Transform: "yyyy"}, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "2026", v)

	v, ok = EvaluateRule(domain.DimensionRule{SourceField: "entity.name", Transform: "uppercase"}, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "ACME RANCH", v)

	v, ok = EvaluateRule(domain.DimensionRule{SourceField: "entity.name", Transform: "prefix", TransformParams: map[string]string{"value": "CC-"}}, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "CC-acme ranch", v)

	v, ok = EvaluateRule(domain.DimensionRule{SourceField: "entity.name", Transform: "truncate", TransformParams: map[string]string{"length": "4"}}, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "acme", v)

	v, ok = EvaluateRule(domain.DimensionRule{SourceField: "line.category", Transform: "map", TransformParams: map[string]string{"FEED": "COST-FEED"}}, source, map[string]string{"category": "FEED"})
	assert.True(t, ok)
	assert.Equal(t, "COST-FEED", v)
}

func TestEvaluateRule_MissingFieldNoDefault(t *testing.T) {
	_, ok := EvaluateRule(domain.DimensionRule{SourceField: "entity.missing_field"}, SourceData{}, nil)
	assert.False(t, ok)
}

func TestEvaluateRule_CELTransform(t *testing.T) {
	evaluator, err := NewCELTransformEvaluator()
	assert.NoError(t, err)

	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}
	rule := domain.DimensionRule{
		SourceField:     "entity.cost_center",
		Transform:       "cel",
		TransformParams: map[string]string{"expr": `value.upperAscii()`},
	}

	v, ok := EvaluateRule(rule, source, nil, TransformContext{CEL: evaluator})
	assert.True(t, ok)
	assert.Equal(t, "RANCH-WEST", v)
}

func TestEvaluateRule_CELTransformNoEvaluatorFallsToDefault(t *testing.T) {
	rule := domain.DimensionRule{
		SourceField:     "entity.cost_center",
		Transform:       "cel",
		TransformParams: map[string]string{"expr": `value.upperAscii()`},
		DefaultValue:    "DEFAULT-CC",
	}
	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}

	v, ok := EvaluateRule(rule, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "DEFAULT-CC", v)
}

func TestEvaluateRule_CELTransformInvalidExpressionMisses(t *testing.T) {
	evaluator, err := NewCELTransformEvaluator()
	assert.NoError(t, err)

	rule := domain.DimensionRule{
		SourceField:     "entity.cost_center",
		Transform:       "cel",
		TransformParams: map[string]string{"expr": `this is not valid cel`},
	}
	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}

	_, ok := EvaluateRule(rule, source, nil, TransformContext{CEL: evaluator})
	assert.False(t, ok)
}

func TestEvaluateRule_WASMTransformNoEvaluatorFallsToDefault(t *testing.T) {
	rule := domain.DimensionRule{
		SourceField:     "entity.cost_center",
		Transform:       "wasm",
		TransformParams: map[string]string{"module": "cost-center-mapper"},
		DefaultValue:    "DEFAULT-CC",
	}
	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}

	v, ok := EvaluateRule(rule, source, nil)
	assert.True(t, ok)
	assert.Equal(t, "DEFAULT-CC", v)
}

func TestEvaluateRule_WASMTransformUnknownModuleMisses(t *testing.T) {
	evaluator, err := NewWASMTransformEvaluator(context.Background())
	assert.NoError(t, err)
	defer evaluator.Close(context.Background())

	rule := domain.DimensionRule{
		SourceField:     "entity.cost_center",
		Transform:       "wasm",
		TransformParams: map[string]string{"module": "cost-center-mapper"},
	}
	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}

	_, ok := EvaluateRule(rule, source, nil, TransformContext{WASM: evaluator, WASMModules: map[string][]byte{}})
	assert.False(t, ok)
}

func TestCodeInvoice_ThreadsTransformContextIntoDimensionRules(t *testing.T) {
	evaluator, err := NewCELTransformEvaluator()
	assert.NoError(t, err)

	inv := domain.InvoiceDocument{LineItems: []domain.LineItem{{Description: "Feed charge"}}}
	rules := []domain.DimensionRule{
		{
			DimensionCode:   "COST_CENTER",
			SourceField:     "entity.cost_center",
			Transform:       "cel",
			TransformParams: map[string]string{"expr": `value.upperAscii()`},
			IsRequired:      true,
		},
	}
	glLookup := func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
		return domain.GLMapping{Level: level, GLAccountRef: "5000-FEED"}, true, nil
	}
	source := SourceData{Entity: map[string]string{"cost_center": "ranch-west"}}

	coding := CodeInvoice(inv, "ent-1", "v-1", rules, glLookup, source, TransformContext{CEL: evaluator})
	assert.True(t, coding.Complete)
	assert.Equal(t, "RANCH-WEST", coding.LineCodings[0].Dimensions["COST_CENTER"])
}
