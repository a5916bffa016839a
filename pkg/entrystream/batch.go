package entrystream

import (
	"emperror.dev/errors"
	"github.com/goccy/go-json"

	"github.com/sevadaan/perfmon/pkg/perfmon"
)

// ErrMissingType is returned for a batch without an entry type.
const ErrMissingType = errors.Sentinel("entry type is required")

// Batch is a group of native entries of one type, optionally carrying the
// page context they were observed in.
type Batch struct {
	Type    perfmon.EntryType    `json:"type"`
	Entries []perfmon.Entry      `json:"entries"`
	Page    *perfmon.PageContext `json:"page,omitempty"`
	Err     error                `json:"-"`
}

// Decode parses one JSON encoded batch.
func Decode(data []byte) (*Batch, error) {
	batch := &Batch{}
	if err := json.Unmarshal(data, batch); err != nil {
		return nil, errors.WrapIf(err, "invalid entry batch")
	}
	if batch.Type == "" {
		return nil, ErrMissingType
	}
	return batch, nil
}

// Apply updates env with the page context of batch and dispatches its entries.
// It returns the number of observers that received them. env may be nil.
func Apply(batch *Batch, dispatcher *perfmon.Dispatcher, env *perfmon.HostEnvironment) (int, error) {
	if !dispatcher.Supports(batch.Type) {
		return 0, errors.WithDetails(perfmon.ErrUnsupportedEntryType, "type", batch.Type)
	}
	if batch.Page != nil && env != nil {
		env.Update(*batch.Page)
	}
	if len(batch.Entries) == 0 {
		return 0, nil
	}
	return dispatcher.Dispatch(batch.Type, batch.Entries), nil
}
