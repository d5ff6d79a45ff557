package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumekit/internal/commands"
	"resumekit/internal/domain"
)

func TestResolve(t *testing.T) {
	cases := map[string]domain.BlockType{
		"/contact":    domain.BlockTypeContact,
		"/summary":    domain.BlockTypeSummary,
		"/exp":        domain.BlockTypeExperience,
		"/experience": domain.BlockTypeExperience,
		"/edu":        domain.BlockTypeEducation,
		"/education":  domain.BlockTypeEducation,
		"/skill":      domain.BlockTypeSkill,
		"/proj":       domain.BlockTypeProject,
		"/project":    domain.BlockTypeProject,
		"/cert":       domain.BlockTypeCertification,
		"/lang":       domain.BlockTypeLanguage,
		"/avatar":     domain.BlockTypeAvatar,
		"/custom":     domain.BlockTypeCustom,
	}
	for cmd, want := range cases {
		got, ok := commands.Resolve(cmd)
		require.True(t, ok, cmd)
		assert.Equal(t, want, got, cmd)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	got, ok := commands.Resolve("  /SKILL  ")
	require.True(t, ok)
	assert.Equal(t, domain.BlockTypeSkill, got)
}

func TestResolveRejectsNonCommands(t *testing.T) {
	for _, input := range []string{"", "skill", "  exp", "/nope", "//skill", "/skill extra"} {
		_, ok := commands.Resolve(input)
		assert.False(t, ok, "%q must not resolve", input)
	}
}

func TestAllCoversTableAndIsACopy(t *testing.T) {
	all := commands.All()
	assert.Len(t, all, 13)

	// Every command in the table round-trips through Resolve.
	for cmd, want := range all {
		got, ok := commands.Resolve(cmd)
		require.True(t, ok, cmd)
		assert.Equal(t, want, got, cmd)
	}

	// Mutating the returned map must not leak into the table.
	all["/skill"] = domain.BlockTypeContact
	got, ok := commands.Resolve("/skill")
	require.True(t, ok)
	assert.Equal(t, domain.BlockTypeSkill, got)
}
