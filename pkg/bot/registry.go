package bot

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDuplicateRegistration = errors.New("bot: duplicate registration")

// Definition declares a function and its entry in the command menu. Only
// definitions with a description are published to the menu.
type Definition struct {
	Name        string
	Description string
	Aliases     []string
}

type registries struct {
	functions map[string]Handler
	menu      []Definition
	payloads  map[string]Handler
	callbacks map[int]Handler
	persists  map[int]Handler
}

func buildRegistries(handlers []Handler) (*registries, error) {
	reg := &registries{
		functions: make(map[string]Handler),
		payloads:  make(map[string]Handler),
		callbacks: make(map[int]Handler),
		persists:  make(map[int]Handler),
	}

	for _, h := range handlers {
		if p, ok := h.(FunctionProvider); ok {
			for _, def := range p.Functions() {
				name := strings.ToLower(def.Name)
				if name == "" {
					return nil, fmt.Errorf("bot: %T declares a function without a name", h)
				}
				fresh, err := claim(reg.functions, name, h, "function")
				if err != nil {
					return nil, err
				}
				for _, alias := range def.Aliases {
					if _, err := claim(reg.functions, strings.ToLower(alias), h, "function"); err != nil {
						return nil, err
					}
				}
				if fresh {
					reg.menu = append(reg.menu, def)
				}
			}
		}
		if p, ok := h.(PayloadProvider); ok {
			for _, prefix := range p.Payloads() {
				if _, err := claim(reg.payloads, prefix, h, "payload"); err != nil {
					return nil, err
				}
			}
		}
		if p, ok := h.(CallbackProvider); ok {
			for _, id := range p.CallbackIDs() {
				if id < 0 || id > MaxCallbackID {
					return nil, fmt.Errorf("bot: callback id %d out of range 0..%d", id, MaxCallbackID)
				}
				if _, err := claim(reg.callbacks, id, h, "callback"); err != nil {
					return nil, err
				}
			}
		}
		if p, ok := h.(PersistProvider); ok {
			for _, id := range p.PersistIDs() {
				if _, err := claim(reg.persists, id, h, "persist"); err != nil {
					return nil, err
				}
			}
		}
	}
	return reg, nil
}

// claim maps key to h. It reports whether the key was new; the same handler
// claiming the same key again is a no-op.
func claim[K comparable](m map[K]Handler, key K, h Handler, kind string) (bool, error) {
	if owner, ok := m[key]; ok {
		if owner == h {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s %v claimed by %T and %T", ErrDuplicateRegistration, kind, key, owner, h)
	}
	m[key] = h
	return true, nil
}
