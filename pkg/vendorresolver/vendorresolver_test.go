package vendorresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/domain"
)

func TestNormalize_StripsSuffixAndPunctuation(t *testing.T) {
	assert.Equal(t, "ACME RANCH SUPPLY", Normalize("Acme Ranch Supply, Inc."))
	assert.Equal(t, "J B FEED", Normalize("J & B Feed LLC"))
	assert.Equal(t, "TRIPLE-C CATTLE", Normalize("Triple-C Cattle Co."))
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "ACME RANCH", Normalize("  Acme   Ranch  "))
}

func TestResolve_ExactAliasHit(t *testing.T) {
	lookup := func(customerID, entityID, aliasNormalized string) (domain.VendorAlias, bool) {
		if aliasNormalized == "ACME RANCH SUPPLY" {
			return domain.VendorAlias{VendorID: "v-1", VendorName: "Acme Ranch Supply"}, true
		}
		return domain.VendorAlias{}, false
	}

	res := Resolve("cust-1", "ent-1", "Acme Ranch Supply, Inc.", Address{}, nil, lookup, config.DefaultVendorWeights())
	assert.True(t, res.AutoMatched)
	assert.Equal(t, "v-1", res.Vendor.VendorID)
	assert.Equal(t, MatchExactAlias, res.Vendor.Kind)
	assert.Equal(t, 100.0, res.Vendor.Score)
}

func TestResolve_FuzzyAutoMatchOnStrongNameSimilarity(t *testing.T) {
	vendors := []domain.VendorProfile{
		{VendorID: "v-1", VendorName: "Acme Ranch Supply"},
		{VendorID: "v-2", VendorName: "Totally Unrelated Vendor"},
	}

	res := Resolve("cust-1", "ent-1", "Acme Ranch Supply", Address{}, vendors, nil, config.DefaultVendorWeights())
	assert.True(t, res.AutoMatched)
	assert.Equal(t, "v-1", res.Vendor.VendorID)
	assert.Equal(t, MatchFuzzy, res.Vendor.Kind)
}

func TestResolve_BelowFuzzyThresholdDropped(t *testing.T) {
	vendors := []domain.VendorProfile{
		{VendorID: "v-1", VendorName: "Zephyr Industrial Solutions"},
	}

	res := Resolve("cust-1", "ent-1", "Acme Ranch Supply", Address{}, vendors, nil, config.DefaultVendorWeights())
	assert.False(t, res.AutoMatched)
	assert.Empty(t, res.Candidates)
}

func TestResolve_AddressScoreFactorsIntoTotal(t *testing.T) {
	extractedAddr := Address{State: "TX", City: "Amarillo", Street: "100 Main St"}
	vendors := []domain.VendorProfile{
		{VendorID: "v-match", VendorName: "Acme Ranch Supply", State: "TX", City: "Amarillo", Street: "100 Main St"},
		{VendorID: "v-diff-addr", VendorName: "Acme Ranch Supply", State: "OK", City: "Tulsa", Street: "200 Other Ave"},
	}

	res := Resolve("cust-1", "ent-1", "Acme Ranch Supply", extractedAddr, vendors, nil, config.DefaultVendorWeights())
	assert.NotEmpty(t, res.Candidates)
	assert.Equal(t, "v-match", res.Candidates[0].VendorID)
	assert.Greater(t, res.Candidates[0].Score, res.Candidates[1].Score)
}

func TestResolve_NoCandidates_ReturnsEmptyResolution(t *testing.T) {
	res := Resolve("cust-1", "ent-1", "Acme Ranch Supply", Address{}, nil, nil, config.DefaultVendorWeights())
	assert.False(t, res.AutoMatched)
	assert.Nil(t, res.Vendor)
	assert.Empty(t, res.Candidates)
}

func TestBuildConfirmedAlias(t *testing.T) {
	vendor := domain.VendorProfile{VendorID: "v-1", VendorNumber: "V001", VendorName: "Acme Ranch Supply"}
	alias := BuildConfirmedAlias("cust-1", "ent-1", "Acme Ranch Supply, Inc.", vendor)

	assert.Equal(t, "cust-1", alias.CustomerID)
	assert.Equal(t, "ent-1", alias.EntityID)
	assert.Equal(t, "ACME RANCH SUPPLY", alias.AliasNormalized)
	assert.Equal(t, "v-1", alias.VendorID)
}

func TestTokenSim_IdenticalTokensScoreOne(t *testing.T) {
	sim := tokenSim([]string{"ACME", "RANCH"}, []string{"ACME", "RANCH"})
	assert.Equal(t, 1.0, sim)
}

func TestStringSim_ContainmentRatio(t *testing.T) {
	sim := stringSim("ACME", "ACME RANCH SUPPLY")
	assert.InDelta(t, float64(len("ACME"))/float64(len("ACME RANCH SUPPLY")), sim, 0.001)
}

func TestAddressScore_CityPartialMatchAddsFlatBonus(t *testing.T) {
	// Same state, exact street, and a substring city match: the city
	// contributes a flat 0.2, not 0.35 scaled down further.
	exact := AddressScore(
		Address{State: "TX", City: "AMARILLO", Street: "100 MAIN ST"},
		Address{State: "TX", City: "AMARILLO", Street: "100 MAIN ST"},
	)
	partial := AddressScore(
		Address{State: "TX", City: "AMARILLO", Street: "100 MAIN ST"},
		Address{State: "TX", City: "AMARILLO HEIGHTS", Street: "100 MAIN ST"},
	)
	noMatch := AddressScore(
		Address{State: "TX", City: "AMARILLO", Street: "100 MAIN ST"},
		Address{State: "TX", City: "LUBBOCK", Street: "100 MAIN ST"},
	)

	// exact: (0.4 + 0.35 + 0.25) * 100 = 100
	assert.InDelta(t, 100.0, exact, 0.001)
	// partial: (0.4 + 0.2 + 0.25) * 100 = 85, not a 0.35*0.2-scaled 72
	assert.InDelta(t, 85.0, partial, 0.001)
	assert.InDelta(t, 65.0, noMatch, 0.001)
	assert.Greater(t, partial, noMatch)
	assert.Greater(t, exact, partial)
}

func TestPartialTokenBonus_CreditsPerTokenAbbreviationMatches(t *testing.T) {
	// "CAT" is a literal 3-char substring of "CATTLE"; "XY" is too short
	// (<3 chars) to count even though it matches nothing anyway.
	bonus := partialTokenBonus(toSet([]string{"CAT", "XY"}), toSet([]string{"CATTLE", "COMPANY"}))
	assert.InDelta(t, 0.05, bonus, 0.001)
}

func TestPartialTokenBonus_CapsAtPointTwo(t *testing.T) {
	bonus := partialTokenBonus(
		toSet([]string{"ABC", "DEF", "GHI", "JKL", "MNO"}),
		toSet([]string{"XABCX", "XDEFX", "XGHIX", "XJKLX", "XMNOX"}),
	)
	assert.Equal(t, 0.2, bonus)
}
