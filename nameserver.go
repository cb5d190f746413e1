package subsys

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// NameServer resolves a logical service name to a live service in the process
type NameServer interface {
	// Lookup returns the service bound under name, or a *NamingError
	Lookup(name string) (any, error)
}

// Lookup resolves name through ns and checks the service has type T.
//
//	logs, err := subsys.Lookup[subsys.LogServer](ns, subsys.LogServerName)
func Lookup[T any](ns NameServer, name string) (T, error) {
	var zero T

	svc, err := ns.Lookup(name)
	if err != nil {
		return zero, err
	}

	typed, ok := svc.(T)
	if !ok {
		return zero, &NamingError{Name: name, Err: ErrTypeMismatch}
	}
	return typed, nil
}

// Directory is an in-process NameServer. It is safe for concurrent use.
type Directory struct {
	bindings cmap.ConcurrentMap[string, any]
}

// NewDirectory returns an empty Directory
func NewDirectory() *Directory {
	return &Directory{bindings: cmap.New[any]()}
}

// Bind registers svc under name. It fails if the name is already bound.
func (d *Directory) Bind(name string, svc any) error {
	if !d.bindings.SetIfAbsent(name, svc) {
		return &NamingError{Name: name, Err: ErrNameBound}
	}
	return nil
}

// Rebind registers svc under name, replacing any previous binding
func (d *Directory) Rebind(name string, svc any) {
	d.bindings.Set(name, svc)
}

// Unbind removes the binding for name if present
func (d *Directory) Unbind(name string) {
	d.bindings.Remove(name)
}

// Lookup returns the service bound under name
func (d *Directory) Lookup(name string) (any, error) {
	svc, ok := d.bindings.Get(name)
	if !ok {
		return nil, &NamingError{Name: name, Err: ErrNameNotBound}
	}
	return svc, nil
}

// Names returns all bound names in sorted order
func (d *Directory) Names() []string {
	names := d.bindings.Keys()
	sort.Strings(names)
	return names
}

// Ensure Directory implements NameServer
var _ NameServer = (*Directory)(nil)
