package engine

import (
	"fmt"

	"wingo-engine/models"
)

// ModeSet is the ordered table of configured modes.
type ModeSet struct {
	ordered []models.Mode
	byName  map[string]models.Mode
}

func NewModeSet(modes []models.Mode) ModeSet {
	set := ModeSet{byName: make(map[string]models.Mode, len(modes))}
	for _, m := range modes {
		set.ordered = append(set.ordered, m)
		set.byName[m.Name] = m
	}
	return set
}

func (s ModeSet) Lookup(name string) (models.Mode, error) {
	m, ok := s.byName[name]
	if !ok {
		return models.Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
	return m, nil
}

// Names returns the mode names in configuration order.
func (s ModeSet) Names() []string {
	names := make([]string, 0, len(s.ordered))
	for _, m := range s.ordered {
		names = append(names, m.Name)
	}
	return names
}

func (s ModeSet) All() []models.Mode {
	return append([]models.Mode(nil), s.ordered...)
}
