package persona

import "fmt"

// Registry exposes persona lookup for routing and HTTP handlers. The
// persona set is fixed at construction; there is no mutation API.
type Registry interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Entry() Persona
}

// MemoryRegistry implements Registry with an in-memory slice.
type MemoryRegistry struct {
	items []Persona
}

// NewRegistry validates the persona graph and returns a registry. Every
// hand-off target must resolve to a persona in the set and the entry node
// must exist; a dangling edge is a startup failure, not a runtime one.
func NewRegistry(items []Persona) (*MemoryRegistry, error) {
	byID := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("persona with empty id")
		}
		if _, dup := byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", item.ID)
		}
		byID[item.ID] = struct{}{}
	}
	if _, ok := byID[EntryID]; !ok {
		return nil, fmt.Errorf("entry persona %q missing", EntryID)
	}
	for _, item := range items {
		for _, target := range item.Handoffs {
			if _, ok := byID[target]; !ok {
				return nil, fmt.Errorf("persona %q hands off to unknown persona %q", item.ID, target)
			}
		}
	}
	return &MemoryRegistry{items: append([]Persona(nil), items...)}, nil
}

// List returns the personas in declaration order.
func (r *MemoryRegistry) List() []Persona {
	return append([]Persona(nil), r.items...)
}

// FindByID looks up a persona by identifier.
func (r *MemoryRegistry) FindByID(id string) (Persona, bool) {
	for _, item := range r.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Entry returns the triage persona.
func (r *MemoryRegistry) Entry() Persona {
	p, _ := r.FindByID(EntryID)
	return p
}
