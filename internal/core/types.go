package core

import (
	"maps"
	"slices"
	"strings"

	"agcred/internal/util"
)

// ConfigFilename is the per-agent file holding provider mappings.
const ConfigFilename = "credentials.json"

// Mappings maps a provider name ("google", "hubspot") to an integration id.
type Mappings map[string]string

// Providers returns the provider names in sorted order.
func (m Mappings) Providers() []string {
	return slices.Sorted(maps.Keys(m))
}

// ChangeKind classifies a single provider entry in a Diff.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
)

// Change is the before/after value of one provider.
type Change struct {
	Kind     ChangeKind
	Provider string
	Old      string
	New      string
}

// Render formats the change as a single line. Ids are masked unless reveal is set.
func (c Change) Render(reveal bool) string {
	show := util.Mask
	if reveal {
		show = func(s string) string { return s }
	}
	switch c.Kind {
	case ChangeAdded:
		return "+ " + c.Provider + ": " + show(c.New)
	case ChangeRemoved:
		return "- " + c.Provider + ": " + show(c.Old)
	default:
		return "~ " + c.Provider + ": " + show(c.Old) + " -> " + show(c.New)
	}
}

func (c Change) String() string { return c.Render(false) }

// Diff lists the providers that differ between old and new, sorted by provider.
func Diff(old, new Mappings) []Change {
	var out []Change
	for _, p := range old.Providers() {
		nv, ok := new[p]
		switch {
		case !ok:
			out = append(out, Change{Kind: ChangeRemoved, Provider: p, Old: old[p]})
		case nv != old[p]:
			out = append(out, Change{Kind: ChangeUpdated, Provider: p, Old: old[p], New: nv})
		}
	}
	for _, p := range new.Providers() {
		if _, ok := old[p]; !ok {
			out = append(out, Change{Kind: ChangeAdded, Provider: p, New: new[p]})
		}
	}
	slices.SortStableFunc(out, func(a, b Change) int { return strings.Compare(a.Provider, b.Provider) })
	return out
}

// RenderDiff renders changes the way the CLI prints them in dry-run mode.
func RenderDiff(changes []Change, reveal bool) string {
	if len(changes) == 0 {
		return "Diff (mappings):\n  (no change)\n"
	}
	var b strings.Builder
	b.WriteString("Diff (mappings):\n")
	for _, c := range changes {
		b.WriteString("  ")
		b.WriteString(c.Render(reveal))
		b.WriteString("\n")
	}
	return b.String()
}
