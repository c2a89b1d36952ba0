// Package params implements the sectioned parameter store.
//
// Parameters are string values keyed by (section, name). Names are matched
// case-insensitively and unknown names are retained so that configuration
// written for newer versions still round-trips. Typed getters coerce the
// stored string and fall back to the documented default when the value is
// absent or malformed.
//
// Lookups fall back from the requested section to the global section ("")
// and then to the default table.
package params
