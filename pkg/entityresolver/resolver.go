package entityresolver

import (
	"sort"
	"strings"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/domain"
)

// Candidate is one scored entity, sorted descending by Score.
type Candidate struct {
	EntityID string   `json:"entity_id"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
}

// Resolution is C4's output (spec.md §4.4).
type Resolution struct {
	AutoAssigned bool        `json:"auto_assigned"`
	Entity       *Candidate  `json:"entity,omitempty"`
	Candidates   []Candidate `json:"candidates"`
	Reasons      []string    `json:"reasons"`
}

// VendorExistsFunc answers whether the extracted vendor/owner name is a
// known vendor of the given entity (spec.md §4.4's "async lookup"
// signal). Implementations typically query pkg/persistence's vendor
// alias table; Resolve treats it as a pure callback and never calls it
// concurrently.
type VendorExistsFunc func(entityID, ownerName string) bool

// ExtractSignals builds the six scoring signals from an invoice,
// filling any blank invoice field from the statement (spec.md §4.4:
// "statement fills missing invoice fields").
func ExtractSignals(invoice domain.InvoiceDocument, statement *domain.StatementDocument) Signals {
	s := Signals{
		OwnerNumber:  invoice.OwnerNumber,
		OwnerName:    invoice.Owner,
		FeedlotName:  invoice.Feedlot,
		FeedlotState: invoice.FeedlotState,
		LotNumber:    invoice.Lot,
		RemitState:   invoice.RemitState,
	}
	if statement == nil {
		return s
	}
	s.OwnerNumber = coalesce(s.OwnerNumber, statement.OwnerNumber)
	s.OwnerName = coalesce(s.OwnerName, statement.Owner)
	s.FeedlotName = coalesce(s.FeedlotName, statement.Feedlot)
	s.FeedlotState = coalesce(s.FeedlotState, statement.FeedlotState)
	s.RemitState = coalesce(s.RemitState, statement.RemitState)
	return s
}

type accum struct {
	score   float64
	reasons []string
}

// Resolve scores every candidate entity against signals using
// routingKeys (spec.md §3 RoutingKey rows) and entities (for
// FEEDLOT_NAME alias fallback), sorts descending, and decides
// auto-assignment per weights. Given the same inputs it always returns
// the same Resolution.
func Resolve(signals Signals, entities []domain.EntityProfile, routingKeys []domain.RoutingKey, vendorExists VendorExistsFunc, weights config.EntityWeights) Resolution {
	scores := map[string]*accum{}
	add := func(entityID string, points float64, reason string) {
		if entityID == "" || points == 0 {
			return
		}
		a, ok := scores[entityID]
		if !ok {
			a = &accum{}
			scores[entityID] = a
		}
		a.score += points
		a.reasons = append(a.reasons, reason)
	}

	scoreOwnerNumber(signals, routingKeys, weights, add)
	scoreFeedlotName(signals, entities, routingKeys, weights, add)
	scoreRemitState(signals, routingKeys, weights, add)
	scoreLotPrefix(signals, routingKeys, weights, add)
	scoreVendorName(signals, entities, vendorExists, weights, add)

	candidates := make([]Candidate, 0, len(scores))
	for entityID, a := range scores {
		candidates = append(candidates, Candidate{EntityID: entityID, Score: a.score, Reasons: a.reasons})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].EntityID < candidates[j].EntityID // stable tiebreak
	})

	maxCandidates := weights.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 3
	}
	trimmed := candidates
	if len(trimmed) > maxCandidates {
		trimmed = trimmed[:maxCandidates]
	}

	res := Resolution{Candidates: trimmed}
	if len(candidates) == 0 {
		return res
	}

	top := candidates[0]
	if len(candidates) == 1 || top.Score-candidates[1].Score >= weights.MarginThreshold {
		if top.Score >= weights.AutoAssignThresh {
			res.AutoAssigned = true
			entity := top
			res.Entity = &entity
			res.Reasons = top.Reasons
			return res
		}
	}
	return res
}

// bestKey picks the single winning routing key among every match for
// keyType (spec.md §4.4: "the matched routing key with highest priority
// wins" — one winner overall, not one per entity, since two conflicting
// rows for the same signal value should not both score).
func bestKey(keys []domain.RoutingKey, keyType domain.RoutingKeyType, match func(domain.RoutingKey) bool, better func(a, b domain.RoutingKey) bool) (domain.RoutingKey, bool) {
	var best domain.RoutingKey
	found := false
	for _, k := range keys {
		if k.KeyType != keyType || !match(k) {
			continue
		}
		if !found || better(k, best) {
			best = k
			found = true
		}
	}
	return best, found
}

func higherPriority(a, b domain.RoutingKey) bool { return a.Priority > b.Priority }

func scoreOwnerNumber(s Signals, keys []domain.RoutingKey, w config.EntityWeights, add func(string, float64, string)) {
	if s.OwnerNumber == "" {
		return
	}
	want := normalize(s.OwnerNumber)
	k, ok := bestKey(keys, domain.KeyOwnerNumber, func(k domain.RoutingKey) bool {
		return normalize(k.KeyValue) == want
	}, higherPriority)
	if !ok {
		return
	}
	points := w.OwnerNumberSoft
	if k.Confidence == domain.ConfidenceHard {
		points = w.OwnerNumberHard
	}
	add(k.EntityID, points, "OWNER_NUMBER routing key match")
}

func scoreFeedlotName(s Signals, entities []domain.EntityProfile, keys []domain.RoutingKey, w config.EntityWeights, add func(string, float64, string)) {
	if s.FeedlotName == "" {
		return
	}
	want := normalize(s.FeedlotName)

	if k, ok := bestKey(keys, domain.KeyFeedlotName, func(k domain.RoutingKey) bool {
		v := normalize(k.KeyValue)
		return v != "" && (v == want || strings.Contains(want, v))
	}, higherPriority); ok {
		points := w.FeedlotNameSoft
		if k.Confidence == domain.ConfidenceHard {
			points = w.FeedlotNameHard
		}
		add(k.EntityID, points, "FEEDLOT_NAME routing key match")
		return
	}

	for _, e := range entities {
		for _, alias := range e.Aliases {
			if norm := normalize(alias); norm != "" && strings.Contains(want, norm) {
				add(e.EntityID, w.FeedlotNameSoft, "feedlot name found in entity alias")
				break
			}
		}
	}
}

func scoreRemitState(s Signals, keys []domain.RoutingKey, w config.EntityWeights, add func(string, float64, string)) {
	if s.RemitState == "" {
		return
	}
	want := normalize(s.RemitState)
	k, ok := bestKey(keys, domain.KeyRemitState, func(k domain.RoutingKey) bool {
		return normalize(k.KeyValue) == want
	}, higherPriority)
	if !ok {
		return
	}
	add(k.EntityID, w.RemitState, "REMIT_STATE routing key match")
}

func scoreLotPrefix(s Signals, keys []domain.RoutingKey, w config.EntityWeights, add func(string, float64, string)) {
	if s.LotNumber == "" {
		return
	}
	want := normalize(s.LotNumber)
	longestThenPriority := func(a, b domain.RoutingKey) bool {
		la, lb := len(normalize(a.KeyValue)), len(normalize(b.KeyValue))
		if la != lb {
			return la > lb
		}
		return higherPriority(a, b)
	}
	k, ok := bestKey(keys, domain.KeyLotPrefix, func(k domain.RoutingKey) bool {
		v := normalize(k.KeyValue)
		return v != "" && strings.HasPrefix(want, v)
	}, longestThenPriority)
	if !ok {
		return
	}
	add(k.EntityID, w.LotPrefix, "LOT_PREFIX routing key match")
}

func scoreVendorName(s Signals, entities []domain.EntityProfile, vendorExists VendorExistsFunc, w config.EntityWeights, add func(string, float64, string)) {
	if vendorExists == nil || s.OwnerName == "" {
		return
	}
	for _, e := range entities {
		if vendorExists(e.EntityID, s.OwnerName) {
			add(e.EntityID, w.VendorNameMatch, "vendor name exists in entity")
		}
	}
}
