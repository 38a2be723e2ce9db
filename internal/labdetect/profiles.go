package labdetect

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labqc-mcp-server/internal/domain"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// LabProfile is the signature set for one laboratory. Profiles are
// immutable once built.
type LabProfile struct {
	LabType    domain.LabType
	Threshold  float64
	Signatures []Signature
}

// ProfileSet is the ordered, read-only signature table. Declaration order is
// the tie-break order.
type ProfileSet struct {
	profiles []LabProfile
}

type profilesFile struct {
	Profiles []profileSpec `yaml:"profiles"`
}

type profileSpec struct {
	LabType    string          `yaml:"lab_type"`
	Threshold  float64         `yaml:"threshold"`
	Signatures []signatureSpec `yaml:"signatures"`
}

type signatureSpec struct {
	Kind     string  `yaml:"kind"`
	Pattern  string  `yaml:"pattern"`
	Weight   float64 `yaml:"weight"`
	Regex    bool    `yaml:"regex"`
	MinCount int     `yaml:"min_count"`
	Callable bool    `yaml:"callable"`
}

// DefaultProfiles returns the built-in MEDSI, HELIX and INVITRO table.
func DefaultProfiles() (*ProfileSet, error) {
	return ParseProfiles(defaultProfilesYAML)
}

// LoadProfilesFile reads a signature table with the same schema as the
// embedded one.
func LoadProfilesFile(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}
	set, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", path, err)
	}
	return set, nil
}

// ParseProfiles decodes and compiles a YAML signature table.
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles defined", domain.ErrInvalidInput)
	}

	seen := make(map[domain.LabType]bool, len(file.Profiles))
	profiles := make([]LabProfile, 0, len(file.Profiles))
	for i, spec := range file.Profiles {
		p, err := spec.compile()
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		if seen[p.LabType] {
			return nil, fmt.Errorf("%w: duplicate profile for %s", domain.ErrInvalidInput, p.LabType)
		}
		seen[p.LabType] = true
		profiles = append(profiles, p)
	}
	return &ProfileSet{profiles: profiles}, nil
}

func (s profileSpec) compile() (LabProfile, error) {
	labType, err := domain.ParseLabType(s.LabType)
	if err != nil {
		return LabProfile{}, err
	}
	if labType == domain.UNKNOWN {
		return LabProfile{}, fmt.Errorf("%w: %s cannot have a profile", domain.ErrInvalidLabType, labType)
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return LabProfile{}, fmt.Errorf("%w: threshold %v outside [0,1]", domain.ErrInvalidInput, s.Threshold)
	}

	sigs := make([]Signature, 0, len(s.Signatures))
	for j, spec := range s.Signatures {
		sig, err := spec.compile()
		if err != nil {
			return LabProfile{}, fmt.Errorf("signature %d: %w", j, err)
		}
		sigs = append(sigs, sig)
	}

	return LabProfile{
		LabType:    labType,
		Threshold:  s.Threshold,
		Signatures: sigs,
	}, nil
}

func (s signatureSpec) compile() (Signature, error) {
	kind := domain.SignatureKind(s.Kind)
	if !kind.IsValid() {
		return Signature{}, fmt.Errorf("%w: %q", domain.ErrInvalidSignatureKind, s.Kind)
	}
	if s.Pattern == "" {
		return Signature{}, fmt.Errorf("%w: empty pattern", domain.ErrInvalidInput)
	}
	if s.Weight < 0 {
		return Signature{}, fmt.Errorf("%w: negative weight %v", domain.ErrInvalidInput, s.Weight)
	}

	var rule Rule
	switch {
	case s.Callable && s.Regex:
		return Signature{}, fmt.Errorf("%w: %q is both regex and callable", domain.ErrInvalidInput, s.Pattern)
	case s.Callable:
		p, err := NewPredicate(s.Pattern)
		if err != nil {
			return Signature{}, err
		}
		rule = p
	case s.Regex:
		r, err := NewRegex(s.Pattern, s.MinCount)
		if err != nil {
			return Signature{}, err
		}
		rule = r
	default:
		rule = NewLiteral(s.Pattern)
	}

	return Signature{Kind: kind, Weight: s.Weight, Rule: rule}, nil
}

// NewProfileSet builds a table from already compiled profiles.
func NewProfileSet(profiles ...LabProfile) *ProfileSet {
	cp := make([]LabProfile, len(profiles))
	copy(cp, profiles)
	return &ProfileSet{profiles: cp}
}

// Profiles returns a copy of the table in declaration order.
func (s *ProfileSet) Profiles() []LabProfile {
	cp := make([]LabProfile, len(s.profiles))
	copy(cp, s.profiles)
	return cp
}

// Len returns the number of profiles.
func (s *ProfileSet) Len() int {
	return len(s.profiles)
}
