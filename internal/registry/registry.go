package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// UnknownName is returned for lookups that miss the registry. Unknown codes
// (new units shipped before the next static sync) must never fail ingestion.
const UnknownName = "Unknown"

const (
	UnitsFileName     = "units.json"
	ArtefactsFileName = "artefacts.json"
)

type Unit struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Grade   string `json:"grade"`
	Role    string `json:"role"`
	Element string `json:"element"`
}

type Artefact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnitRegistry is a static id-to-unit mapping loaded once at process start,
// read-only afterwards.
type UnitRegistry struct {
	units map[string]Unit
}

func NewUnitRegistry(units ...Unit) *UnitRegistry {
	m := make(map[string]Unit, len(units))
	for _, u := range units {
		m[u.ID] = u
	}
	return &UnitRegistry{units: m}
}

func LoadUnitRegistry(path string) (*UnitRegistry, error) {
	units := map[string]Unit{}
	if err := loadJSONMap(path, &units); err != nil {
		return nil, fmt.Errorf("failed to load unit registry: %w", err)
	}
	return &UnitRegistry{units: units}, nil
}

func (r *UnitRegistry) Get(id string) (Unit, bool) {
	u, ok := r.units[id]
	return u, ok
}

func (r *UnitRegistry) NameFromID(id string) string {
	if u, ok := r.units[id]; ok {
		return u.Name
	}
	return UnknownName
}

func (r *UnitRegistry) Len() int {
	return len(r.units)
}

type ArtefactRegistry struct {
	artefacts map[string]Artefact
}

func NewArtefactRegistry(artefacts ...Artefact) *ArtefactRegistry {
	m := make(map[string]Artefact, len(artefacts))
	for _, a := range artefacts {
		m[a.ID] = a
	}
	return &ArtefactRegistry{artefacts: m}
}

func LoadArtefactRegistry(path string) (*ArtefactRegistry, error) {
	artefacts := map[string]Artefact{}
	if err := loadJSONMap(path, &artefacts); err != nil {
		return nil, fmt.Errorf("failed to load artefact registry: %w", err)
	}
	return &ArtefactRegistry{artefacts: artefacts}, nil
}

func (r *ArtefactRegistry) NameFromID(id string) string {
	if a, ok := r.artefacts[id]; ok {
		return a.Name
	}
	return UnknownName
}

func (r *ArtefactRegistry) Len() int {
	return len(r.artefacts)
}

func loadJSONMap(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
