package tools

import (
	"fmt"
	"strings"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

// Shared schema fields. Descriptions are written for the calling agent.

func orgField() tool.Field {
	return tool.Field{
		Name:        tool.FieldOrganizationSlug,
		Type:        tool.TypeString,
		Description: "The organization's slug. Call find_organizations if you are unsure.",
		Required:    true,
	}
}

func projectOrIDField(desc string) tool.Field {
	if desc == "" {
		desc = "The project's slug or numeric ID."
	}
	return tool.Field{Name: tool.FieldProjectSlugOrID, Type: tool.TypeString, Description: desc}
}

func regionField() tool.Field {
	return tool.Field{
		Name:        tool.FieldRegionURL,
		Type:        tool.TypeString,
		Description: "The organization's region API URL, from the organization's links. Omit for self-hosted installs.",
	}
}

// Argument readers. Arguments have already passed schema validation, so
// these are lenient on missing values and strict on types only where a
// mismatch would otherwise panic.

func stringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

func requiredStringArg(args map[string]any, name string) (string, error) {
	v := stringArg(args, name)
	if strings.TrimSpace(v) == "" {
		return "", mcperr.NewUserInputError("The %s parameter is required.", name)
	}
	return v, nil
}

func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func boolArg(args map[string]any, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func stringSliceArg(args map[string]any, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// md is a small markdown builder for tool output.
type md struct {
	b strings.Builder
}

func (m *md) h1(title string)  { fmt.Fprintf(&m.b, "# %s\n\n", title) }
func (m *md) h2(title string)  { fmt.Fprintf(&m.b, "## %s\n\n", title) }
func (m *md) line(s string)    { m.b.WriteString(s + "\n") }
func (m *md) blank()           { m.b.WriteString("\n") }
func (m *md) bullet(s string)  { m.b.WriteString("- " + s + "\n") }
func (m *md) field(k, v string) {
	if v != "" {
		fmt.Fprintf(&m.b, "**%s**: %s\n", k, v)
	}
}
func (m *md) f(format string, args ...any) { fmt.Fprintf(&m.b, format, args...) }
func (m *md) String() string               { return strings.TrimRight(m.b.String(), "\n") + "\n" }

// usageHint appends the standard "Using this information" trailer that
// teaches the agent how to chain into follow-up tools.
func (m *md) usageHint(lines ...string) {
	m.blank()
	m.h2("Using this information")
	for _, l := range lines {
		m.bullet(l)
	}
}
