// Package tokens holds the small value types shared by every stage of the pipeline.
package tokens

import (
	"encoding/json"
	"fmt"
)

// Offsets is a half-open range `[Start, End)` of characters (Unicode code points).
type Offsets struct {
	Start, End int
}

// Len returns the number of characters covered.
func (o Offsets) Len() int { return o.End - o.Start }

// Contains returns whether the character position pos falls inside the range.
func (o Offsets) Contains(pos int) bool { return pos >= o.Start && pos < o.End }

// Shift returns the offsets moved by delta.
func (o Offsets) Shift(delta int) Offsets { return Offsets{Start: o.Start + delta, End: o.End + delta} }

// String implements fmt.Stringer.
func (o Offsets) String() string { return fmt.Sprintf("(%d, %d)", o.Start, o.End) }

// MarshalJSON implements json.Marshaler. Offsets are serialized as a `[start, end]` pair.
func (o Offsets) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{o.Start, o.End})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Offsets) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	o.Start, o.End = pair[0], pair[1]
	return nil
}

// Token is a unit produced by a Model: its textual value, its id in the vocabulary and the
// characters of the input it covers.
type Token struct {
	Value   string
	ID      uint32
	Offsets Offsets
}

// NewToken creates a Token.
func NewToken(id uint32, value string, offsets Offsets) Token {
	return Token{Value: value, ID: id, Offsets: offsets}
}
