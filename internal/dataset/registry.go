package dataset

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v2"

	"udisecli/pkg/contracts/domain"
)

//go:embed registry.yaml
var registryYAML []byte

// CodeEntry maps one raw survey code to its display label.
type CodeEntry struct {
	Code  float64 `yaml:"code"`
	Label string  `yaml:"label"`
}

// RegistryColumn is the declarative description of one recognized column.
type RegistryColumn struct {
	Name         string      `yaml:"name"`
	Label        string      `yaml:"label"`
	Kind         string      `yaml:"kind"`
	Role         string      `yaml:"role"`
	Predicate    string      `yaml:"predicate"`
	Optional     bool        `yaml:"optional"`
	KPI          bool        `yaml:"kpi"`
	PositiveCode *float64    `yaml:"positive_code"`
	Codes        []CodeEntry `yaml:"codes"`
}

// ColumnKind maps the declared kind to the wire enum. The registry default
// is text.
func (rc *RegistryColumn) ColumnKind() domain.ColumnKind {
	if rc.Kind == "numeric" {
		return domain.ColumnNumeric
	}
	return domain.ColumnText
}

// ColumnRole maps the declared role to the wire enum.
func (rc *RegistryColumn) ColumnRole() domain.ColumnRole {
	switch rc.Role {
	case "identifier":
		return domain.RoleIdentifier
	case "geography":
		return domain.RoleGeography
	case "category":
		return domain.RoleCategory
	case "facility":
		return domain.RoleFacility
	case "measure":
		return domain.RoleMeasure
	case "derived":
		return domain.RoleDerived
	default:
		return domain.RoleUnknown
	}
}

// PredicateKind maps the declared predicate to the wire enum. Columns with
// no predicate entry are not filterable.
func (rc *RegistryColumn) PredicateKind() domain.PredicateKind {
	switch rc.Predicate {
	case "membership":
		return domain.PredicateMembership
	case "equality":
		return domain.PredicateEquality
	case "range":
		return domain.PredicateRange
	default:
		return domain.PredicateNone
	}
}

// CodeLabel returns the display label for a raw code, or the canonical
// numeric form when the code is not in the table.
func (rc *RegistryColumn) CodeLabel(code float64) string {
	for _, c := range rc.Codes {
		if c.Code == code {
			return c.Label
		}
	}
	return FormatFloat(code)
}

// Registry is the parsed column catalog.
type Registry struct {
	JoinKey string           `yaml:"join_key"`
	Columns []RegistryColumn `yaml:"columns"`

	byName map[string]int
}

// ParseRegistry parses a registry document and indexes it by column name.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse column registry: %w", err)
	}
	if reg.JoinKey == "" {
		return nil, fmt.Errorf("column registry missing join_key")
	}
	reg.byName = make(map[string]int, len(reg.Columns))
	for i, c := range reg.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column registry entry %d missing name", i)
		}
		if _, dup := reg.byName[c.Name]; dup {
			return nil, fmt.Errorf("column registry duplicates %q", c.Name)
		}
		reg.byName[c.Name] = i
	}
	return &reg, nil
}

// Lookup returns the registry entry for a column name.
func (r *Registry) Lookup(name string) (*RegistryColumn, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &r.Columns[i], true
}

// KPIFlags returns the facility columns surfaced as headline percentages,
// in registry order.
func (r *Registry) KPIFlags() []RegistryColumn {
	var flags []RegistryColumn
	for _, c := range r.Columns {
		if c.KPI && c.PositiveCode != nil {
			flags = append(flags, c)
		}
	}
	return flags
}

// Required returns the non-optional, non-derived columns a complete source
// set is expected to provide.
func (r *Registry) Required() []RegistryColumn {
	var cols []RegistryColumn
	for _, c := range r.Columns {
		if !c.Optional && c.Role != "derived" {
			cols = append(cols, c)
		}
	}
	return cols
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the embedded column registry. The embedded
// document is validated at build time by tests, so a parse failure here is
// a programming error.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		reg, err := ParseRegistry(registryYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded column registry invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}
