package contact

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// RoleList stores a contact's network role tags as a JSON array in a
// single text column, portable across postgres and the sqlite test driver.
type RoleList []string

// Value implements driver.Valuer
func (r RoleList) Value() (driver.Value, error) {
	if r == nil {
		r = RoleList{}
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *RoleList) Scan(value any) error {
	if value == nil {
		*r = RoleList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported network_roles column type %T", value)
	}
	if len(data) == 0 {
		*r = RoleList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.New("malformed network_roles column")
	}
	*r = out
	return nil
}

// Contains reports whether the list carries the given role
func (r RoleList) Contains(role NetworkRole) bool {
	for _, s := range r {
		if s == string(role) {
			return true
		}
	}
	return false
}
