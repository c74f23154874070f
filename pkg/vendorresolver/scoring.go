package vendorresolver

import "strings"

// tokenSim implements spec.md §4.5's token_sim: Jaccard similarity over
// token sets, plus a first-token-match bonus and a partial-substring
// bonus, capped at 1.0.
func tokenSim(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA, setB := toSet(a), toSet(b)
	jaccard := jaccardSim(setA, setB)

	score := jaccard
	if a[0] == b[0] {
		score += 0.15
	}
	score += partialTokenBonus(setA, setB)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func jaccardSim(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// partialTokenBonus rewards tokens that are abbreviations of one
// another rather than exact matches (e.g. "CATTLE" vs "CTL"): for every
// token unique to setA that is a substring (or superstring) of some
// token unique to setB, 3 characters or longer, 0.5 is credited; the
// bonus is 0.1 times the credits (0.05 per matching token), capped at 0.2.
func partialTokenBonus(setA, setB map[string]bool) float64 {
	matches := 0.0
	for t1 := range setA {
		if setB[t1] {
			continue // exact matches already counted by the Jaccard term
		}
		if len(t1) < 3 {
			continue
		}
		for t2 := range setB {
			if setA[t2] {
				continue
			}
			if len(t2) < 3 {
				continue
			}
			if strings.Contains(t1, t2) || strings.Contains(t2, t1) {
				matches += 0.5
				break
			}
		}
	}
	bonus := matches * 0.1
	if bonus > 0.2 {
		bonus = 0.2
	}
	return bonus
}

// stringSim implements spec.md §4.5's string_sim: a containment ratio
// when one normalized name contains the other, else character-set
// Jaccard similarity.
func stringSim(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}
	return charJaccard(a, b)
}

func charJaccard(a, b string) float64 {
	setA, setB := charSet(a), charSet(b)
	return jaccardSim(setA, setB)
}

func charSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, r := range s {
		if r == ' ' {
			continue
		}
		set[string(r)] = true
	}
	return set
}

// NameScore combines token_sim and string_sim per spec.md §4.5, scaled
// to 0-100.
func NameScore(extractedNormalized, candidateNormalized string) float64 {
	ts := tokenSim(Tokenize(extractedNormalized), Tokenize(candidateNormalized))
	ss := stringSim(extractedNormalized, candidateNormalized)
	return (0.7*ts + 0.3*ss) * 100
}

// Address is the optional postal signal both sides may supply.
type Address struct {
	State  string
	City   string
	Street string
}

// AddressScore implements spec.md §4.5's address_score, scaled to
// 0-100.
func AddressScore(extracted, candidate Address) float64 {
	state := normalizeField(extracted.State)
	candState := normalizeField(candidate.State)
	stateEq := 0.0
	if state != "" && state == candState {
		stateEq = 1
	}

	// City contributes a flat bonus rather than a weighted fraction: an
	// exact match is worth 0.35, a partial (substring) match 0.2, and a
	// non-match contributes nothing.
	city := normalizeField(extracted.City)
	candCity := normalizeField(candidate.City)
	cityBonus := 0.0
	switch {
	case city != "" && city == candCity:
		cityBonus = 0.35
	case city != "" && candCity != "" && (strings.Contains(city, candCity) || strings.Contains(candCity, city)):
		cityBonus = 0.2
	}

	streetSim := stringSim(normalizeField(extracted.Street), normalizeField(candidate.Street))

	return (0.4*stateEq + cityBonus + 0.25*streetSim) * 100
}

func normalizeField(s string) string {
	return Normalize(s)
}

// HasAddress reports whether an Address carries any usable signal.
func (a Address) HasAddress() bool {
	return a.State != "" || a.City != "" || a.Street != ""
}
