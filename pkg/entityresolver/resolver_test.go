package entityresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/domain"
)

func TestResolve_AutoAssignsOnStrongCombinedMatch(t *testing.T) {
	signals := Signals{OwnerNumber: "1001", FeedlotName: "BOVINA FEEDLOT", RemitState: "TX"}
	keys := []domain.RoutingKey{
		{KeyType: domain.KeyOwnerNumber, KeyValue: "1001", EntityID: "ent-a", Confidence: domain.ConfidenceHard, Priority: 1},
		{KeyType: domain.KeyFeedlotName, KeyValue: "BOVINA FEEDLOT", EntityID: "ent-a", Confidence: domain.ConfidenceHard, Priority: 1},
		{KeyType: domain.KeyRemitState, KeyValue: "TX", EntityID: "ent-a", Priority: 1},
	}

	res := Resolve(signals, nil, keys, nil, config.DefaultEntityWeights())
	assert.True(t, res.AutoAssigned)
	assert.Equal(t, "ent-a", res.Entity.EntityID)
	assert.Equal(t, 70.0, res.Entity.Score)
}

func TestResolve_NoAutoAssignWhenMarginTooSmall(t *testing.T) {
	signals := Signals{OwnerNumber: "1001", FeedlotName: "BOVINA FEEDLOT", RemitState: "TX", LotNumber: "TX-100"}
	entities := []domain.EntityProfile{{EntityID: "ent-a"}, {EntityID: "ent-b"}}
	keys := []domain.RoutingKey{
		{KeyType: domain.KeyOwnerNumber, KeyValue: "1001", EntityID: "ent-a", Confidence: domain.ConfidenceHard, Priority: 1},
		{KeyType: domain.KeyFeedlotName, KeyValue: "BOVINA FEEDLOT", EntityID: "ent-b", Confidence: domain.ConfidenceHard, Priority: 1},
		{KeyType: domain.KeyRemitState, KeyValue: "TX", EntityID: "ent-b", Priority: 1},
		{KeyType: domain.KeyLotPrefix, KeyValue: "TX-100", EntityID: "ent-b", Priority: 1},
	}
	vendorExists := func(entityID, ownerName string) bool { return true } // both entities match, by construction

	res := Resolve(signals, entities, keys, vendorExists, config.DefaultEntityWeights())
	assert.False(t, res.AutoAssigned)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, 70.0, res.Candidates[0].Score)
	assert.Equal(t, 70.0, res.Candidates[1].Score)
}

func TestResolve_NoAutoAssignBelowThreshold(t *testing.T) {
	signals := Signals{RemitState: "TX"}
	keys := []domain.RoutingKey{
		{KeyType: domain.KeyRemitState, KeyValue: "TX", EntityID: "ent-a", Confidence: domain.ConfidenceHard, Priority: 1},
	}

	res := Resolve(signals, nil, keys, nil, config.DefaultEntityWeights())
	assert.False(t, res.AutoAssigned)
	assert.Equal(t, 15.0, res.Candidates[0].Score)
}

func TestResolve_VendorNameLookupContributes(t *testing.T) {
	signals := Signals{OwnerName: "ACME RANCH"}
	entities := []domain.EntityProfile{{EntityID: "ent-a"}}
	vendorExists := func(entityID, ownerName string) bool { return entityID == "ent-a" && ownerName == "ACME RANCH" }

	res := Resolve(signals, entities, nil, vendorExists, config.DefaultEntityWeights())
	assert.False(t, res.AutoAssigned) // 30 alone doesn't clear the 70 threshold
	assert.Equal(t, 30.0, res.Candidates[0].Score)
}

func TestResolve_FeedlotAliasSubstringFallback(t *testing.T) {
	signals := Signals{FeedlotName: "BOVINA FEEDLOT #4"}
	entities := []domain.EntityProfile{{EntityID: "ent-a", Aliases: []string{"BOVINA FEEDLOT"}}}

	res := Resolve(signals, entities, nil, nil, config.DefaultEntityWeights())
	assert.Equal(t, 7.5, res.Candidates[0].Score)
}

func TestResolve_LotPrefixLongestMatchWins(t *testing.T) {
	signals := Signals{LotNumber: "TX-1001-A"}
	keys := []domain.RoutingKey{
		{KeyType: domain.KeyLotPrefix, KeyValue: "TX", EntityID: "ent-short", Priority: 5},
		{KeyType: domain.KeyLotPrefix, KeyValue: "TX-1001", EntityID: "ent-long", Priority: 1},
	}

	res := Resolve(signals, nil, keys, nil, config.DefaultEntityWeights())
	// Only the longest-prefix match wins overall; the shorter-prefix
	// entity never scores for this signal.
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, "ent-long", res.Candidates[0].EntityID)
}

func TestResolve_NoSignals_ReturnsEmptyResolution(t *testing.T) {
	res := Resolve(Signals{}, nil, nil, nil, config.DefaultEntityWeights())
	assert.False(t, res.AutoAssigned)
	assert.Nil(t, res.Entity)
	assert.Empty(t, res.Candidates)
}

func TestExtractSignals_FillsFromStatement(t *testing.T) {
	invoice := domain.InvoiceDocument{Owner: "", FeedlotState: ""}
	statement := &domain.StatementDocument{Owner: "ACME RANCH", FeedlotState: "TX", OwnerNumber: "1001"}

	signals := ExtractSignals(invoice, statement)
	assert.Equal(t, "ACME RANCH", signals.OwnerName)
	assert.Equal(t, "TX", signals.FeedlotState)
	assert.Equal(t, "1001", signals.OwnerNumber)
}

func TestExtractSignals_InvoiceFieldTakesPrecedence(t *testing.T) {
	invoice := domain.InvoiceDocument{Owner: "DIRECT OWNER"}
	statement := &domain.StatementDocument{Owner: "STATEMENT OWNER"}

	signals := ExtractSignals(invoice, statement)
	assert.Equal(t, "DIRECT OWNER", signals.OwnerName)
}
