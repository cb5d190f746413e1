package subsys

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Attribute keys every subsystem publishes
const (
	// AttrUUID maps to the subsystem's uuid.UUID
	AttrUUID = "UUID"
	// AttrName maps to the subsystem's name
	AttrName = "NAME"
)

// Identity is the fixed identifier and name of a subsystem
type Identity struct {
	// ID is unique across all subsystems
	ID uuid.UUID
	// Name is unique across the subsystems registered with one host
	Name string
}

// MustIdentity builds an Identity from constant values.
// It panics if id is not a valid UUID or name is empty.
func MustIdentity(id, name string) Identity {
	if name == "" {
		panic("subsys: identity name must not be empty")
	}
	return Identity{ID: uuid.MustParse(id), Name: name}
}

// String returns "name(id)"
func (i Identity) String() string {
	return fmt.Sprintf("%s(%s)", i.Name, i.ID)
}

// Attributes is a read-only view of a subsystem's declared attributes.
// The zero value is empty.
type Attributes struct {
	m map[string]any
}

// NewAttributes returns attributes holding the identity keys plus a copy of extra.
// Identity keys always win over entries in extra.
func NewAttributes(id Identity, extra map[string]any) Attributes {
	m := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		m[k] = v
	}
	m[AttrUUID] = id.ID
	m[AttrName] = id.Name
	return Attributes{m: m}
}

// Get returns the value stored under key
func (a Attributes) Get(key string) (any, bool) {
	v, ok := a.m[key]
	return v, ok
}

// Len returns the number of attributes
func (a Attributes) Len() int {
	return len(a.m)
}

// Keys returns the attribute keys in sorted order
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.m))
	for k := range a.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for every attribute in key order until fn returns false
func (a Attributes) Range(fn func(key string, value any) bool) {
	for _, k := range a.Keys() {
		if !fn(k, a.m[k]) {
			return
		}
	}
}

// Map returns a fresh copy of the attributes; changing it has no effect on a
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}
