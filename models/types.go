package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IDSet is a set of entity ids stored as a JSON array column.
type IDSet []uint32

// Value implements driver.Valuer interface for database storage
func (s IDSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint32(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for database retrieval
func (s *IDSet) Scan(value interface{}) error {
	if value == nil {
		*s = IDSet{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into IDSet", value)
	}
}

// GormDataType returns the data type for GORM
func (IDSet) GormDataType() string {
	return "json"
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]uint32(s))
}

func (s IDSet) Contains(id uint32) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// With returns a copy of the set including id.
func (s IDSet) With(id uint32) IDSet {
	if s.Contains(id) {
		return s
	}
	out := make(IDSet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, id)
}
