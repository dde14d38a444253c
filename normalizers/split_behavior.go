package normalizers

import (
	"encoding/json"

	"github.com/gomlx/go-tokenizers/errs"
)

// SplitBehavior defines what happens to the matches of a pattern when splitting a NormalizedString.
//
// For example, splitting "the-final--countdown" on "-":
//
//   - SplitRemoved: "the", "final", "countdown"
//   - SplitIsolated: "the", "-", "final", "-", "-", "countdown"
//   - SplitMergedWithPrevious: "the-", "final-", "-", "countdown"
//   - SplitMergedWithNext: "the", "-final", "-", "-countdown"
//   - SplitContiguous: "the", "-", "final", "--", "countdown"
type SplitBehavior uint8

const (
	SplitRemoved SplitBehavior = iota
	SplitIsolated
	SplitMergedWithPrevious
	SplitMergedWithNext
	SplitContiguous
)

//go:generate stringer -type=SplitBehavior -trimprefix=Split -output=split_behavior_string.go

// MarshalJSON implements json.Marshaler.
func (b SplitBehavior) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *SplitBehavior) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing split behavior")
	}
	for candidate := SplitRemoved; candidate <= SplitContiguous; candidate++ {
		if candidate.String() == name {
			*b = candidate
			return nil
		}
	}
	return errs.Errorf(errs.ErrConfig, "unknown split behavior %q", name)
}
