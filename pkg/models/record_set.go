package models

import (
	"cmp"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RecordSet is an ordered collection of records of a single kind produced by
// one ingestion run. Saving a RecordSet replaces every stored record of its kind.
type RecordSet struct {
	Kind    Kind     `json:"kind"`
	Records []Record `json:"records"`
}

// NewRecordSet creates an empty set for kind.
func NewRecordSet(kind Kind) RecordSet {
	return RecordSet{Kind: kind, Records: []Record{}}
}

func (s RecordSet) Len() int {
	return len(s.Records)
}

// Validate checks that every record belongs to the set's kind.
func (s RecordSet) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("invalid record set kind %q", s.Kind)
	}
	for i, r := range s.Records {
		if r == nil {
			return fmt.Errorf("record %d is nil", i)
		}
		if r.Kind() != s.Kind {
			return fmt.Errorf("record %d has kind %s, expected %s", i, r.Kind(), s.Kind)
		}
	}
	return nil
}

// Find returns the record with the given id.
func (s RecordSet) Find(id uuid.UUID) (Record, int, bool) {
	for i, r := range s.Records {
		if r.RecordID() == id {
			return r, i, true
		}
	}
	return nil, -1, false
}

type rawRecordSet struct {
	Kind    Kind              `json:"kind"`
	Records []json.RawMessage `json:"records"`
}

// UnmarshalJSON decodes records into the concrete variant named by kind.
func (s *RecordSet) UnmarshalJSON(data []byte) error {
	var raw rawRecordSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	records, err := DecodeRecords(raw.Kind, raw.Records)
	if err != nil {
		return err
	}
	s.Kind = raw.Kind
	s.Records = records
	return nil
}

// DecodeRecords decodes raw JSON objects into records of kind.
func DecodeRecords(kind Kind, raws []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		record, err := DecodeRecord(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// DecodeRecord decodes one raw JSON object into a record of kind.
func DecodeRecord(kind Kind, raw json.RawMessage) (Record, error) {
	switch kind {
	case KindRevenue:
		return decodeAs[RevenueLine](raw)
	case KindPurchase:
		return decodeAs[PurchaseLine](raw)
	case KindInventory:
		return decodeAs[InventoryLine](raw)
	case KindSupplier:
		return decodeAs[SupplierProfile](raw)
	case KindQuote:
		return decodeAs[QuoteRequestLine](raw)
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func decodeAs[T Record](raw json.RawMessage) (Record, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// AssignIDs gives every record without an id a fresh one, and every record
// without a row number its 1-based position.
func AssignIDs(records []Record) {
	for i, r := range records {
		id := r.RecordID()
		if id == uuid.Nil {
			id = uuid.New()
		}
		records[i] = withIdentity(r, id, i+1)
	}
}

func withIdentity(r Record, id uuid.UUID, pos int) Record {
	switch v := r.(type) {
	case RevenueLine:
		v.ID, v.RowNo = id, cmp.Or(v.RowNo, pos)
		return v
	case PurchaseLine:
		v.ID, v.RowNo = id, cmp.Or(v.RowNo, pos)
		return v
	case InventoryLine:
		v.ID, v.RowNo = id, cmp.Or(v.RowNo, pos)
		return v
	case SupplierProfile:
		v.ID, v.RowNo = id, cmp.Or(v.RowNo, pos)
		return v
	case QuoteRequestLine:
		v.ID, v.RowNo = id, cmp.Or(v.RowNo, pos)
		return v
	}
	return r
}
