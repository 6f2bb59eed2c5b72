package badger

const (
	indexEntryPrefix = "idx"
)

// makeCollectionPrefix returns the key prefix shared by every entry of a collection.
// Format: idx:collection:
func makeCollectionPrefix(collection string) []byte {
	return []byte(indexEntryPrefix + ":" + collection + ":")
}

// makeEntryKey generates the key for an index entry.
// Format: idx:collection:id
func makeEntryKey(collection, id string) []byte {
	return append(makeCollectionPrefix(collection), id...)
}
