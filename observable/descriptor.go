package observable

import (
	"fmt"
	"reflect"
	"sync"
)

// Descriptor is the per-class table of observable properties. It is built
// once at class-registration time and never changes afterwards; lookups at
// write and subscribe time are plain map reads with no introspection.
type Descriptor struct {
	class reflect.Type
	props map[string]*property
	order []string
}

// property binds a name to its getter and optional setter. A nil setter
// marks a read-only (typically computed) property, which notifies via
// Update or Notify instead of Set.
type property struct {
	name string
	get  func(instance any) any
	set  func(instance any, value any)
}

// PropertySpec declares one observable property of class T during
// registration. Build specs with Accessor and Getter.
type PropertySpec[T any] struct {
	name string
	get  func(instance any) any
	set  func(instance any, value any)
}

// Accessor declares a read-write observable property. Writes through Set
// run the before phase, then set, then the after phase.
//
// Set panics if the written value is not assignable to V, the same way a
// direct typed assignment would fail.
func Accessor[T any, V any](name string, get func(*T) V, set func(*T, V)) PropertySpec[T] {
	return PropertySpec[T]{
		name: name,
		get:  func(instance any) any { return get(instance.(*T)) },
		set:  func(instance any, value any) { set(instance.(*T), value.(V)) },
	}
}

// Getter declares a read-only observable property, usually one computed
// from backing state. It has no setter path; the owning code triggers
// notification through Update or Notify.
func Getter[T any, V any](name string, get func(*T) V) PropertySpec[T] {
	return PropertySpec[T]{
		name: name,
		get:  func(instance any) any { return get(instance.(*T)) },
	}
}

// classes is the process-wide descriptor table, keyed by the pointer type
// of each registered class. Registration happens at init time; lookups are
// read-only afterwards.
var classes = struct {
	mu sync.RWMutex
	m  map[reflect.Type]*Descriptor
}{m: make(map[reflect.Type]*Descriptor)}

// Register declares the observable properties of class T. Instances of T
// are observed through their *T pointer.
//
// Register is meant to be called once per class, from an init function or
// package-level variable. It panics on a duplicate registration, an empty
// property list, an empty or duplicate property name, or a nil getter:
// these are programmer errors in class definition, not runtime conditions.
func Register[T any](specs ...PropertySpec[T]) {
	class := reflect.TypeOf((*T)(nil))
	if len(specs) == 0 {
		panic(fmt.Sprintf("observable: Register[%s] with no properties", class.Elem()))
	}

	desc := &Descriptor{
		class: class,
		props: make(map[string]*property, len(specs)),
		order: make([]string, 0, len(specs)),
	}
	for _, spec := range specs {
		if spec.name == "" {
			panic(fmt.Sprintf("observable: Register[%s] with empty property name", class.Elem()))
		}
		if spec.get == nil {
			panic(fmt.Sprintf("observable: property %s.%s has no getter", class.Elem(), spec.name))
		}
		if _, dup := desc.props[spec.name]; dup {
			panic(fmt.Sprintf("observable: property %s.%s registered twice", class.Elem(), spec.name))
		}
		desc.props[spec.name] = &property{name: spec.name, get: spec.get, set: spec.set}
		desc.order = append(desc.order, spec.name)
	}

	classes.mu.Lock()
	defer classes.mu.Unlock()
	if _, dup := classes.m[class]; dup {
		panic(fmt.Sprintf("observable: class %s registered twice", class.Elem()))
	}
	classes.m[class] = desc
}

// Properties returns the observable property names of the descriptor in
// declaration order.
func (d *Descriptor) Properties() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Class returns the pointer type the descriptor was registered for.
func (d *Descriptor) Class() reflect.Type {
	return d.class
}

// ObservableProperties returns the declared observable property names of the
// instance's class, in declaration order. Returns a configuration error for
// non-pointer instances and unregistered classes.
func ObservableProperties(instance any) ([]string, error) {
	desc, err := descriptorOf(instance)
	if err != nil {
		return nil, err
	}
	return desc.Properties(), nil
}

// descriptorOf resolves the descriptor for an instance, validating that the
// instance is a non-nil pointer of a registered class.
func descriptorOf(instance any) (*Descriptor, error) {
	rt := reflect.TypeOf(instance)
	if rt == nil || rt.Kind() != reflect.Pointer || reflect.ValueOf(instance).IsNil() {
		return nil, NewNotPointerError(className(rt))
	}

	classes.mu.RLock()
	desc := classes.m[rt]
	classes.mu.RUnlock()

	if desc == nil {
		return nil, NewNotRegisteredError(className(rt))
	}
	return desc, nil
}

// resolve looks up a named property on the instance's class.
func resolve(instance any, propertyName string) (*Descriptor, *property, error) {
	desc, err := descriptorOf(instance)
	if err != nil {
		return nil, nil, err
	}
	prop := desc.props[propertyName]
	if prop == nil {
		return nil, nil, NewNotObservableError(className(desc.class), propertyName)
	}
	return desc, prop, nil
}

// className renders a type for error messages and telemetry. Pointer types
// are reported by their element type, matching how classes are declared.
func className(rt reflect.Type) string {
	if rt == nil {
		return "<nil>"
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.String()
}
