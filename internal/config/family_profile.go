package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FamilyProfile is a feedlot-family-specific configuration profile,
// generalizing the teacher's RegionalProfile (pkg/config/profile_loader.go)
// from jurisdiction to feedlot family: it selects page-split keywords, the
// statement-total source field, and default resolver weights.
type FamilyProfile struct {
	Family               string           `yaml:"family" json:"family"`
	StatementKeyword     string           `yaml:"statement_keyword" json:"statement_keyword"`
	InvoiceKeyword       string           `yaml:"invoice_keyword" json:"invoice_keyword"`
	StatementTotalSource string           `yaml:"statement_total_source" json:"statement_total_source"`
	EntityWeights        EntityWeights    `yaml:"entity_weights" json:"entity_weights"`
	VendorWeights        VendorWeights    `yaml:"vendor_weights" json:"vendor_weights"`
}

// EntityWeights mirrors the scoring table in spec.md §4.4.
type EntityWeights struct {
	OwnerNumberHard   float64 `yaml:"owner_number_hard" json:"owner_number_hard"`
	OwnerNumberSoft   float64 `yaml:"owner_number_soft" json:"owner_number_soft"`
	VendorNameMatch   float64 `yaml:"vendor_name_match" json:"vendor_name_match"`
	FeedlotNameHard   float64 `yaml:"feedlot_name_hard" json:"feedlot_name_hard"`
	FeedlotNameSoft   float64 `yaml:"feedlot_name_soft" json:"feedlot_name_soft"`
	RemitState        float64 `yaml:"remit_state" json:"remit_state"`
	LotPrefix         float64 `yaml:"lot_prefix" json:"lot_prefix"`
	AutoAssignThresh  float64 `yaml:"auto_assign_threshold" json:"auto_assign_threshold"`
	MarginThreshold   float64 `yaml:"margin_threshold" json:"margin_threshold"`
	MaxCandidates     int     `yaml:"max_candidates" json:"max_candidates"`
}

// VendorWeights mirrors the scoring table in spec.md §4.5.
type VendorWeights struct {
	NameWeight      float64 `yaml:"name_weight" json:"name_weight"`
	AddressWeight   float64 `yaml:"address_weight" json:"address_weight"`
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	AutoThreshold   float64 `yaml:"auto_threshold" json:"auto_threshold"`
	MaxCandidates   int     `yaml:"max_candidates" json:"max_candidates"`
}

// DefaultEntityWeights returns the defaults named in spec.md §4.4.
func DefaultEntityWeights() EntityWeights {
	return EntityWeights{
		OwnerNumberHard: 40, OwnerNumberSoft: 25,
		VendorNameMatch: 30,
		FeedlotNameHard: 15, FeedlotNameSoft: 7.5,
		RemitState: 15, LotPrefix: 10,
		AutoAssignThresh: 70, MarginThreshold: 15, MaxCandidates: 3,
	}
}

// DefaultVendorWeights returns the defaults named in spec.md §4.5.
func DefaultVendorWeights() VendorWeights {
	return VendorWeights{
		NameWeight: 0.75, AddressWeight: 0.25,
		FuzzyThreshold: 60, AutoThreshold: 85, MaxCandidates: 5,
	}
}

// DefaultFamilyProfiles are the two family profiles spec.md names directly
// (BOVINA, MESQUITE); additional families load from YAML via LoadProfile.
func DefaultFamilyProfiles() map[string]FamilyProfile {
	return map[string]FamilyProfile{
		"BOVINA": {
			Family: "BOVINA", StatementKeyword: "statement of notes", InvoiceKeyword: "feed invoice",
			StatementTotalSource: "grand_total_notes",
			EntityWeights:        DefaultEntityWeights(), VendorWeights: DefaultVendorWeights(),
		},
		"MESQUITE": {
			Family: "MESQUITE", StatementKeyword: "statement of account", InvoiceKeyword: "invoice",
			StatementTotalSource: "grand_total_account",
			EntityWeights:        DefaultEntityWeights(), VendorWeights: DefaultVendorWeights(),
		},
	}
}

// LoadProfile loads a feedlot-family YAML profile by family name, searching
// profilesDir for "profile_<family_lower>.yaml". Falls back to the built-in
// default for BOVINA/MESQUITE if the file does not exist.
func LoadProfile(profilesDir, family string) (FamilyProfile, error) {
	key := strings.ToUpper(family)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", strings.ToLower(family)))
	data, err := os.ReadFile(path)
	if err != nil {
		if def, ok := DefaultFamilyProfiles()[key]; ok {
			return def, nil
		}
		return FamilyProfile{}, fmt.Errorf("family profile %q: %w", family, err)
	}
	var p FamilyProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return FamilyProfile{}, fmt.Errorf("parse family profile %q: %w", family, err)
	}
	if p.Family == "" {
		p.Family = key
	}
	return p, nil
}

// LoadAllProfiles returns DefaultFamilyProfiles overlaid with every
// "profile_*.yaml" found in profilesDir: a feedlot family beyond the two
// built-ins (BOVINA, MESQUITE) is onboarded by dropping its YAML file in
// that directory, no code change required. An empty profilesDir, or one
// that doesn't exist, returns the defaults unchanged.
func LoadAllProfiles(profilesDir string) (map[string]FamilyProfile, error) {
	out := DefaultFamilyProfiles()
	if profilesDir == "" {
		return out, nil
	}

	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob family profiles in %q: %w", profilesDir, err)
	}
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".yaml")
		family := strings.TrimPrefix(base, "profile_")
		p, err := LoadProfile(profilesDir, family)
		if err != nil {
			return nil, err
		}
		out[strings.ToUpper(family)] = p
	}
	return out, nil
}
