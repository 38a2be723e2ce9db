package labdetect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestDefaultProfiles(t *testing.T) {
	set, err := DefaultProfiles()
	require.NoError(t, err)

	profiles := set.Profiles()
	require.Len(t, profiles, 3)

	assert.Equal(t, domain.MEDSI, profiles[0].LabType)
	assert.Equal(t, domain.HELIX, profiles[1].LabType)
	assert.Equal(t, domain.INVITRO, profiles[2].LabType)

	for _, p := range profiles {
		assert.Equal(t, 0.3, p.Threshold, p.LabType)
		assert.NotEmpty(t, p.Signatures, p.LabType)
	}

	codePattern := profiles[0].Signatures[3]
	assert.Equal(t, domain.KindCodePattern, codePattern.Kind)
	re, ok := codePattern.Rule.(Regex)
	require.True(t, ok, "code pattern should be a Regex rule")
	assert.Equal(t, 3, re.MinCount)

	structural, ok := profiles[1].Signatures[5].Rule.(Predicate)
	require.True(t, ok, "helix structural signature should be a Predicate rule")
	assert.Equal(t, PredicateHelixPairs, structural.Name)
}

func TestParseProfiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "empty table",
			yaml:    "profiles: []",
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "unknown lab type",
			yaml: `
profiles:
  - lab_type: gemotest
    threshold: 0.3
    signatures:
      - { kind: name, pattern: "gemotest", weight: 0.4 }`,
			wantErr: domain.ErrInvalidLabType,
		},
		{
			name: "unknown profile for UNKNOWN",
			yaml: `
profiles:
  - lab_type: unknown
    threshold: 0.3`,
			wantErr: domain.ErrInvalidLabType,
		},
		{
			name: "unknown kind",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 0.3
    signatures:
      - { kind: footer, pattern: "helix", weight: 0.4 }`,
			wantErr: domain.ErrInvalidSignatureKind,
		},
		{
			name: "unregistered predicate",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 0.3
    signatures:
      - { kind: structural, pattern: "is_helix_format", weight: 0.4, callable: true }`,
			wantErr: domain.ErrUnknownPredicate,
		},
		{
			name: "regex and callable",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 0.3
    signatures:
      - { kind: structural, pattern: "helix_pairs", weight: 0.4, callable: true, regex: true }`,
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "negative weight",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 0.3
    signatures:
      - { kind: name, pattern: "helix", weight: -0.1 }`,
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "threshold above one",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 1.5`,
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "duplicate lab",
			yaml: `
profiles:
  - lab_type: helix
    threshold: 0.3
  - lab_type: HELIX
    threshold: 0.4`,
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParseProfiles_BadRegex(t *testing.T) {
	_, err := ParseProfiles([]byte(`
profiles:
  - lab_type: helix
    threshold: 0.3
    signatures:
      - { kind: header, pattern: "(unclosed", weight: 0.4, regex: true }`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling signature regex")
}

func TestLoadProfilesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "profiles-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "profiles.yaml")
	content := `
profiles:
  - lab_type: invitro
    threshold: 0.5
    signatures:
      - { kind: domain, pattern: "invitro.ru", weight: 0.5 }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	set, err := LoadProfilesFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.Equal(t, domain.INVITRO, set.Profiles()[0].LabType)

	_, err = LoadProfilesFile(filepath.Join(tmpDir, "missing.yaml"))
	assert.Error(t, err)
}

func TestProfileSet_ProfilesIsACopy(t *testing.T) {
	set, err := DefaultProfiles()
	require.NoError(t, err)

	profiles := set.Profiles()
	profiles[0] = LabProfile{LabType: domain.HELIX}

	assert.Equal(t, domain.MEDSI, set.Profiles()[0].LabType)
}
