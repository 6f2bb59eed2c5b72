package storage

import (
	"testing"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/primer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *core.IndexEntry {
	return &core.IndexEntry{
		ID:           "7",
		Text:         "AC circuits use Fourier analysis.",
		ChapterLabel: "Alternating Current",
		SourceIndex:  12,
		Vector:       []float32{0.6, 0.8},
		Fingerprint:  core.ID(18446744073709551615),
		UpdatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC),
	}
}

func TestMarshalUnmarshalEntry(t *testing.T) {
	entry := testEntry()

	data := MarshalEntry(entry)
	assert.Len(t, data, IndexEntryMUS.Size(*entry))

	decoded, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestMarshalEntry_Compact(t *testing.T) {
	entry := testEntry()
	entry.Vector = make([]float32, 768)
	for i := range entry.Vector {
		entry.Vector[i] = 0.036084391
	}

	// Vectors are stored as raw float32 components, four bytes each.
	data := MarshalEntry(entry)
	assert.Less(t, len(data), 4*len(entry.Vector)+128)

	decoded, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry.Vector, decoded.Vector)
}

func TestMarshalEntry_TruncatesToMicroseconds(t *testing.T) {
	entry := testEntry()
	entry.UpdatedAt = time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)

	decoded, err := UnmarshalEntry(MarshalEntry(entry))
	require.NoError(t, err)
	assert.True(t, decoded.UpdatedAt.Equal(entry.UpdatedAt.Truncate(time.Microsecond)))
	assert.Equal(t, time.UTC, decoded.UpdatedAt.Location())
}

func TestUnmarshalEntry_Invalid(t *testing.T) {
	valid := MarshalEntry(testEntry())

	oversized := make([]byte, 4+varint.PositiveInt.Size(MaxDimensions+1))
	varint.PositiveInt.Marshal(MaxDimensions+1, oversized[4:])

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", []byte{}, mus.ErrTooSmallByteSlice},
		{"truncated", valid[:len(valid)-1], mus.ErrTooSmallByteSlice},
		{"trailing bytes", append(append([]byte{}, valid...), 0), ErrSerializationFailed},
		{"too many dimensions", oversized, ErrTooManyDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEntry(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIndexEntryMUS_Skip(t *testing.T) {
	entry := testEntry()
	data := MarshalEntry(entry)

	n, err := IndexEntryMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestToSearchResult(t *testing.T) {
	result := ToSearchResult(&core.IndexEntry{ID: "1", Text: "t", ChapterLabel: "c", Vector: []float32{1}}, 0.5)
	assert.Equal(t, &core.SearchResult{ID: "1", Text: "t", ChapterLabel: "c", Score: 0.5}, result)
}
