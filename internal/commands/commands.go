// Package commands maps slash commands from quick-create surfaces onto
// block types. The mapping is data: commands begin with "/", match
// case-insensitively, and resolve to exactly one type or nothing.
package commands

import (
	"strings"

	"resumekit/internal/domain"
)

var table = map[string]domain.BlockType{
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

// Resolve maps a slash command to its block type. The second return is
// false when the input is not a command or matches nothing.
func Resolve(input string) (domain.BlockType, bool) {
	cmd := strings.ToLower(strings.TrimSpace(input))
	if !strings.HasPrefix(cmd, "/") {
		return "", false
	}
	t, ok := table[cmd]
	return t, ok
}

// All returns every command and its type, for help surfaces.
func All() map[string]domain.BlockType {
	out := make(map[string]domain.BlockType, len(table))
	for cmd, t := range table {
		out[cmd] = t
	}
	return out
}
