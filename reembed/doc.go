// Package reembed rebuilds the vectors of an existing index, typically after
// the embedding model or its task prefixes change.
//
// Entries are read back from the index in batches, re-embedded in document
// mode, given fresh fingerprints, and written back under the same IDs. Text,
// chapter labels, and source positions are left as they are. Entries whose
// fingerprint already matches the current model are skipped unless Force is
// set.
package reembed
