package tools

import (
	"strings"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
)

// Wildcard selects every tool an integration exposes.
const Wildcard = "*"

// Reference is a parsed "<integration>/<tool>" tool reference.
type Reference struct {
	Integration string
	Tool        string
}

// IsWildcard reports whether the reference selects all tools of its integration.
func (r Reference) IsWildcard() bool { return r.Tool == Wildcard }

func (r Reference) String() string { return r.Integration + "/" + r.Tool }

// ParseReference parses "<integration>/<tool>" or "<integration>/*".
// The tool part may itself contain slashes.
func ParseReference(ref string) (Reference, error) {
	name, tool, ok := strings.Cut(ref, "/")
	if !ok || name == "" || tool == "" {
		return Reference{}, errs.BadRequest("invalid tool reference %q: expected <integration>/<tool>", ref)
	}
	return Reference{Integration: name, Tool: tool}, nil
}
