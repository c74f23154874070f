package coding

import (
	"github.com/rivieraros/apcore/pkg/domain"
)

// LineCoding is C6's per-line output (spec.md §4.6).
type LineCoding struct {
	Category          Category            `json:"category"`
	GLRef             string              `json:"gl_ref"`
	MappingLevel      domain.MappingLevel `json:"mapping_level"`
	Dimensions        map[string]string   `json:"dimensions"`
	MissingDimensions []string            `json:"missing_dimensions"`
	Complete          bool                `json:"complete"`
}

// InvoiceCoding aggregates every line's coding (spec.md §4.6).
type InvoiceCoding struct {
	LineCodings       []LineCoding `json:"line_codings"`
	MissingMappings   []string     `json:"missing_mappings"`
	MissingDimensions []string     `json:"missing_dimensions"`
	Warnings          []string     `json:"warnings"`
	Complete          bool         `json:"complete"`
}

// GLLookupFunc resolves (level, entity_id, vendor_id, category) to a
// mapping, mirroring pkg/persistence's FindGLMapping signature so a
// caller can pass store.FindGLMapping directly.
type GLLookupFunc func(level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error)

const suspenseAccount = "SUSPENSE"

// CodeInvoice codes every line item: categorize, resolve the GL account
// by the VENDOR -> ENTITY -> GLOBAL -> suspense precedence (spec.md
// §4.6), then evaluate every applicable dimension rule. glLookup errors
// are treated as a miss at that level (the caller's persistence layer
// logs the underlying error); CodeInvoice itself never returns an
// error since a missing mapping is a normal, reportable outcome, not a
// failure.
func CodeInvoice(inv domain.InvoiceDocument, entityID, vendorID string, rules []domain.DimensionRule, glLookup GLLookupFunc, source SourceData, tcs ...TransformContext) InvoiceCoding {
	var tc TransformContext
	if len(tcs) > 0 {
		tc = tcs[0]
	}

	var lineCodings []LineCoding
	missingMappingsSeen := map[string]bool{}
	var missingMappings []string
	missingDimensionsSeen := map[string]bool{}
	var missingDimensions []string
	var warnings []string

	for _, line := range inv.LineItems {
		category := Categorize(line.Description)
		glRef, level, found := lookupGL(glLookup, entityID, vendorID, string(category))
		if !found {
			glRef = suspenseAccount
			key := string(category)
			if !missingMappingsSeen[key] {
				missingMappingsSeen[key] = true
				missingMappings = append(missingMappings, key)
			}
		}

		lineFields := map[string]string{"description": line.Description, "category": string(category)}
		if line.Total != nil {
			lineFields["total"] = *line.Total
		}

		dimensions := map[string]string{}
		var lineMissing []string
		for _, rule := range rules {
			value, ok := EvaluateRule(rule, source, lineFields, tc)
			if ok {
				dimensions[rule.DimensionCode] = value
				continue
			}
			if rule.IsRequired {
				lineMissing = append(lineMissing, rule.DimensionCode)
				if !missingDimensionsSeen[rule.DimensionCode] {
					missingDimensionsSeen[rule.DimensionCode] = true
					missingDimensions = append(missingDimensions, rule.DimensionCode)
				}
			}
		}

		if category == CategoryUncategorized {
			warnings = append(warnings, "line item did not match any known category: "+line.Description)
		}

		lineCodings = append(lineCodings, LineCoding{
			Category: category, GLRef: glRef, MappingLevel: level,
			Dimensions: dimensions, MissingDimensions: lineMissing,
			Complete: found && len(lineMissing) == 0,
		})
	}

	complete := len(missingMappings) == 0 && len(missingDimensions) == 0
	return InvoiceCoding{
		LineCodings: lineCodings, MissingMappings: missingMappings,
		MissingDimensions: missingDimensions, Warnings: warnings, Complete: complete,
	}
}

func lookupGL(glLookup GLLookupFunc, entityID, vendorID, category string) (string, domain.MappingLevel, bool) {
	if glLookup == nil {
		return "", "", false
	}
	for _, attempt := range []struct {
		level    domain.MappingLevel
		entityID string
		vendorID string
	}{
		{domain.LevelVendor, entityID, vendorID},
		{domain.LevelEntity, entityID, ""},
		{domain.LevelGlobal, "", ""},
	} {
		mapping, ok, err := glLookup(attempt.level, attempt.entityID, attempt.vendorID, category)
		if err != nil || !ok {
			continue
		}
		return mapping.GLAccountRef, attempt.level, true
	}
	return "", "", false
}
