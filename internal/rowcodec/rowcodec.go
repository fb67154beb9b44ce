// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package rowcodec provides CBOR encoding and decoding of rows for spill
// files. The codec round-trips the canonical value set exactly: integers
// come back as int64, timestamps as time.Time, byte strings as []byte.
package rowcodec

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec holds the CBOR encoder/decoder configuration.
type Codec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

// New creates a new CBOR row codec.
func New() (*Codec, error) {
	opts := cbor.CoreDetEncOptions()
	// Tagged RFC 3339 time so decoding an interface value yields time.Time
	opts.Time = cbor.TimeRFC3339Nano
	opts.TimeTag = cbor.EncTagRequired
	em, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR encoder: %w", err)
	}

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,      // Enforce unique keys
		IndefLength:     cbor.IndefLengthAllowed,        // Allow indefinite length
		MaxNestedLevels: 20,                             // Reasonable nesting limit
		IntDec:          cbor.IntDecConvertSignedOrFail, // Always decode to int64 for consistency
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR decoder: %w", err)
	}

	return &Codec{em: em, dm: dm}, nil
}

// Encode encodes a map[string]any to CBOR bytes.
func (c *Codec) Encode(row map[string]any) ([]byte, error) {
	return c.em.Marshal(row)
}

// Decode decodes CBOR bytes into the supplied map[string]any.
// The supplied map is cleared before decoding.
func (c *Codec) Decode(data []byte, into map[string]any) error {
	for k := range into {
		delete(into, k)
	}
	if err := c.dm.Unmarshal(data, &into); err != nil {
		return fmt.Errorf("decode CBOR: %w", err)
	}
	return nil
}

// NewEncoder creates a streaming encoder over w.
func (c *Codec) NewEncoder(w io.Writer) *Encoder {
	return &Encoder{encoder: c.em.NewEncoder(w)}
}

// NewDecoder creates a streaming decoder over r.
func (c *Codec) NewDecoder(r io.Reader) *Decoder {
	return &Decoder{decoder: c.dm.NewDecoder(r)}
}

// Encoder writes CBOR-encoded map data to an io.Writer.
type Encoder struct {
	encoder *cbor.Encoder
}

// Encode writes a map[string]any in CBOR format.
func (e *Encoder) Encode(row map[string]any) error {
	return e.encoder.Encode(row)
}

// Decoder reads CBOR-encoded map data from an io.Reader.
type Decoder struct {
	decoder *cbor.Decoder
}

// Decode reads into the supplied map[string]any from CBOR format.
// The supplied map is cleared before decoding.
// Returns io.EOF when no more data is available.
func (d *Decoder) Decode(into map[string]any) error {
	for k := range into {
		delete(into, k)
	}
	if err := d.decoder.Decode(&into); err != nil {
		if err == io.EOF {
			return err
		}
		return fmt.Errorf("decode CBOR: %w", err)
	}
	return nil
}
