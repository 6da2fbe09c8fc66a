package harness

import (
	"fmt"

	"github.com/roach88/vigil/observable"
)

// Account is the demo observable class every scenario runs against. It
// carries two writable properties, one computed read-only property, and one
// unmanaged backing field:
//
//	balance - writable int
//	owner   - writable string
//	net     - computed, balance minus debt, no setter
//	debt    - backing field, mutated only inside update scopes
type Account struct {
	balance int
	owner   string
	debt    int
}

func init() {
	observable.Register[Account](
		observable.Accessor("balance",
			func(a *Account) int { return a.balance },
			func(a *Account, v int) { a.balance = v },
		),
		observable.Accessor("owner",
			func(a *Account) string { return a.owner },
			func(a *Account, v string) { a.owner = v },
		),
		observable.Getter("net",
			func(a *Account) int { return a.balance - a.debt },
		),
	)
}

// applyField writes a backing field directly, bypassing the observable
// setter path. Update scopes use it so field changes inside the scope do
// not trigger their own dispatch cycles.
func (a *Account) applyField(name string, value any) error {
	switch name {
	case "balance":
		n, ok := toInt(value)
		if !ok {
			return fmt.Errorf("field balance wants an int, got %T", value)
		}
		a.balance = n
	case "debt":
		n, ok := toInt(value)
		if !ok {
			return fmt.Errorf("field debt wants an int, got %T", value)
		}
		a.debt = n
	case "owner":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field owner wants a string, got %T", value)
		}
		a.owner = s
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// coerceValue converts a YAML-decoded value to the concrete type the named
// property expects. YAML integers decode as int, which already matches the
// int-typed properties.
func coerceValue(property string, value any) (any, error) {
	switch property {
	case "balance", "net":
		n, ok := toInt(value)
		if !ok {
			return nil, fmt.Errorf("property %s wants an int, got %T", property, value)
		}
		return n, nil
	case "owner":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("property owner wants a string, got %T", value)
		}
		return s, nil
	default:
		return value, nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
