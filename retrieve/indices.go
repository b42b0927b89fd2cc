package retrieve

import "github.com/elba-build/elba/resolution"

// IndexEntry is one version's metadata as published by an index: where to
// retrieve it, and what it declares as dependencies.
type IndexEntry struct {
	Location     resolution.DirectRes
	Dependencies []IndexDependency
}

// IndexDependency is a single dependency line as declared in an index
// entry, keyed by the dependency's own index so cross-index deps can be
// told apart.
type IndexDependency struct {
	Name  resolution.Name
	Index resolution.IndexRes
	Req   resolution.Constraint
}

// Indices is the external collaborator a Retriever queries for
// Index-resolution package metadata. Implementations are free to back it
// with a local TOML index, a remote registry, or a static fixture — the
// Retriever only needs the three queries below.
type Indices interface {
	// Select returns the concrete location to retrieve sum from.
	Select(sum resolution.Summary) (IndexEntry, bool)
	// Entries returns every published version of pkg, ordered ascending
	// by version (the ordering the widening scan in Incompats relies on).
	Entries(pkg resolution.PackageId) ([]VersionedEntry, error)
	// CountVersions reports how many versions of pkg the index publishes.
	CountVersions(pkg resolution.PackageId) int
}

// VersionedEntry pairs a published version with its entry, in the
// ascending order Indices.Entries must return.
type VersionedEntry struct {
	Version resolution.Version
	Entry   IndexEntry
}
