package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole validates s against the closed role enumeration.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Roles is the set of roles held by a user. It is stored as a sorted,
// comma-joined column and travels as a JSON array.
type Roles map[Role]struct{}

func NewRoles(roles ...Role) Roles {
	set := make(Roles, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ParseRoles builds a set from raw names, rejecting anything outside the enumeration.
func ParseRoles(names []string) (Roles, error) {
	set := make(Roles, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		set[r] = struct{}{}
	}
	return set, nil
}

func (r Roles) Has(role Role) bool {
	_, ok := r[role]
	return ok
}

// HasAny reports whether the set holds at least one of roles.
func (r Roles) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if r.Has(role) {
			return true
		}
	}
	return false
}

func (r *Roles) Add(role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if *r == nil {
		*r = Roles{}
	}
	(*r)[role] = struct{}{}
	return nil
}

func (r Roles) Remove(role Role) {
	delete(r, role)
}

// Slice returns the roles in sorted order.
func (r Roles) Slice() []string {
	out := make([]string, 0, len(r))
	for role := range r {
		out = append(out, string(role))
	}
	sort.Strings(out)
	return out
}

func (r Roles) Value() (driver.Value, error) {
	return strings.Join(r.Slice(), ","), nil
}

func (r *Roles) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*r = Roles{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("roles: unsupported scan type %T", src)
	}
	set, err := ParseRoles(strings.Split(raw, ","))
	if err != nil {
		return err
	}
	*r = set
	return nil
}

func (r Roles) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Slice())
}

func (r *Roles) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseRoles(names)
	if err != nil {
		return err
	}
	*r = set
	return nil
}
