package mcshell

import "sort"

// allowedCommands is the frozen set of local utility names that may be
// spawned as subprocesses. Every entry is a pure or read-only utility
// with no network or filesystem-mutating capability in typical
// distributions. This set is a compile-time constant: there is no
// setter, and it cannot be changed by a running pipeline.
var allowedCommands = map[string]struct{}{
	"jq":    {},
	"grep":  {},
	"sed":   {},
	"awk":   {},
	"sort":  {},
	"uniq":  {},
	"cut":   {},
	"wc":    {},
	"head":  {},
	"tail":  {},
	"tr":    {},
	"date":  {},
	"bc":    {},
	"paste": {},
	"shuf":  {},
	"join":  {},
	"sleep": {},
}

// allowedCommandList is allowedCommands rendered as a stable, sorted
// sequence, computed once at init so List never re-sorts per call.
var allowedCommandList = sortedKeys(allowedCommands)

// Allowlist exposes read-only queries over the frozen command set.
// Allowlist has no mutable state and is safe for concurrent use from
// any number of pipelines.
type Allowlist struct{}

// NewAllowlist returns the process's Allowlist. There is only ever one
// meaningful instance; the zero value is ready to use.
func NewAllowlist() Allowlist { return Allowlist{} }

// Contains reports whether name is a permitted local utility.
func (Allowlist) Contains(name string) bool {
	_, ok := allowedCommands[name]
	return ok
}

// List returns the allow-listed command names in a stable order.
func (Allowlist) List() []string {
	out := make([]string, len(allowedCommandList))
	copy(out, allowedCommandList)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
