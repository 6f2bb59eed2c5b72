package storage

import (
	"errors"
	"fmt"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go/ord"
	slops "github.com/mus-format/mus-go/options/slice"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/primer/core"
)

// MaxDimensions bounds the vector length accepted when decoding an entry.
const MaxDimensions = 1 << 16

// ErrTooManyDimensions is returned when a stored vector claims more than
// MaxDimensions components.
var ErrTooManyDimensions = errors.New("vector exceeds maximum dimensions")

// VectorMUS encodes a vector as a length followed by raw float32 components.
var VectorMUS = ord.NewValidSliceSer[float32](raw.Float32,
	slops.WithLenValidator[float32](com.ValidatorFn[int](func(n int) error {
		if n > MaxDimensions {
			return fmt.Errorf("%w: %d", ErrTooManyDimensions, n)
		}
		return nil
	})))

// IndexEntryMUS is the MUS serializer for core.IndexEntry. UpdatedAt is kept
// to the microsecond and decodes in UTC.
var IndexEntryMUS = indexEntryMUS{}

type indexEntryMUS struct{}

func (s indexEntryMUS) Marshal(v core.IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.ChapterLabel, bs[n:])
	n += varint.Int.Marshal(v.SourceIndex, bs[n:])
	n += VectorMUS.Marshal(v.Vector, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Fingerprint), bs[n:])
	return n + raw.TimeUnixMicroUTC.Marshal(v.UpdatedAt, bs[n:])
}

func (s indexEntryMUS) Unmarshal(bs []byte) (v core.IndexEntry, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChapterLabel, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var fingerprint uint64
	fingerprint, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Fingerprint = core.ID(fingerprint)
	v.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (s indexEntryMUS) Size(v core.IndexEntry) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.ChapterLabel)
	size += varint.Int.Size(v.SourceIndex)
	size += VectorMUS.Size(v.Vector)
	size += varint.Uint64.Size(uint64(v.Fingerprint))
	return size + raw.TimeUnixMicroUTC.Size(v.UpdatedAt)
}

func (s indexEntryMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for _, skip := range []func([]byte) (int, error){
		ord.String.Skip,
		ord.String.Skip,
		varint.Int.Skip,
		VectorMUS.Skip,
		varint.Uint64.Skip,
		raw.TimeUnixMicroUTC.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
