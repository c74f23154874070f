package vendorresolver

import (
	"sort"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/domain"
)

// MatchKind distinguishes an exact alias hit from a fuzzy score.
type MatchKind string

const (
	MatchExactAlias MatchKind = "EXACT_ALIAS"
	MatchFuzzy      MatchKind = "FUZZY"
)

// Candidate is one scored vendor.
type Candidate struct {
	VendorID string    `json:"vendor_id"`
	Score    float64   `json:"score"`
	Kind     MatchKind `json:"kind"`
}

// Resolution is C5's output (spec.md §4.5).
type Resolution struct {
	AutoMatched bool        `json:"auto_matched"`
	Vendor      *Candidate  `json:"vendor,omitempty"`
	Candidates  []Candidate `json:"candidates"`
}

// ExactAliasLookupFunc looks up (customer_id, entity_id,
// alias_normalized) against pkg/persistence's vendor_aliases table.
// Returns ok=false on a miss.
type ExactAliasLookupFunc func(customerID, entityID, aliasNormalized string) (domain.VendorAlias, bool)

// Resolve runs the C5 pipeline: normalize, exact-alias lookup, then
// fuzzy scoring against vendors. Given the same inputs it always
// returns the same Resolution.
func Resolve(customerID, entityID, extractedName string, extractedAddress Address, vendors []domain.VendorProfile, exactLookup ExactAliasLookupFunc, weights config.VendorWeights) Resolution {
	normalized := Normalize(extractedName)

	if exactLookup != nil {
		if alias, ok := exactLookup(customerID, entityID, normalized); ok {
			vendor := Candidate{VendorID: alias.VendorID, Score: 100, Kind: MatchExactAlias}
			return Resolution{AutoMatched: true, Vendor: &vendor, Candidates: []Candidate{vendor}}
		}
	}

	var candidates []Candidate
	for _, v := range vendors {
		candidateNormalized := Normalize(v.VendorName)
		nameScore := NameScore(normalized, candidateNormalized)

		candidateAddress := Address{State: v.State, City: v.City, Street: v.Street}
		total := nameScore
		if extractedAddress.HasAddress() && candidateAddress.HasAddress() {
			addrScore := AddressScore(extractedAddress, candidateAddress)
			total = weights.NameWeight*nameScore + weights.AddressWeight*addrScore
		}

		if total < weights.FuzzyThreshold {
			continue
		}
		candidates = append(candidates, Candidate{VendorID: v.VendorID, Score: total, Kind: MatchFuzzy})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VendorID < candidates[j].VendorID
	})

	maxCandidates := weights.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	res := Resolution{Candidates: candidates}
	if len(candidates) == 0 {
		return res
	}
	if candidates[0].Score >= weights.AutoThreshold {
		res.AutoMatched = true
		top := candidates[0]
		res.Vendor = &top
	}
	return res
}

// BuildConfirmedAlias builds the VendorAlias a caller should persist via
// pkg/persistence's UpsertVendorAlias after a manual or automatic match
// is confirmed, so the identical normalized name is an exact hit next
// time (spec.md §4.5's confirm_match side effect).
func BuildConfirmedAlias(customerID, entityID, extractedName string, vendor domain.VendorProfile) domain.VendorAlias {
	return domain.VendorAlias{
		CustomerID:      customerID,
		EntityID:        entityID,
		AliasNormalized: Normalize(extractedName),
		VendorID:        vendor.VendorID,
		VendorNumber:    vendor.VendorNumber,
		VendorName:      vendor.VendorName,
	}
}
