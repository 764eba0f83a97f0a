// Package schema implements the registry of queryable entities: the single
// source of truth for what tables, columns, and relationship paths callers
// may reference. The registry is built once at startup and is immutable
// thereafter, so it is safe for unbounded concurrent reads.
//
// The registry is the trust boundary for both query front-ends: every
// identifier in caller input must resolve here before use. Legality is never
// inferred from the input's own syntax.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// ColumnType is the semantic type of a queryable column. It drives operator
// compatibility checks in the structured-query compiler.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeJSON      ColumnType = "json"
)

// Ordered reports whether the type supports range comparisons.
func (t ColumnType) Ordered() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeTimestamp:
		return true
	}
	return false
}

// Column is one whitelisted column of an entity.
type Column struct {
	Name     string     `yaml:"name"`
	Type     ColumnType `yaml:"type"`
	Nullable bool       `yaml:"nullable"`
}

// Cardinality describes a relationship's multiplicity as seen from the
// declaring entity.
type Cardinality string

const (
	OneToOne   Cardinality = "one_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToOne  Cardinality = "many_to_one" // declared inverse of one_to_many
	ManyToMany Cardinality = "many_to_many"
)

// inverse returns the cardinality expected on the target's back-reference.
func (c Cardinality) inverse() Cardinality {
	switch c {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	default:
		return c
	}
}

// Relationship is one whitelisted traversal from an entity to another.
// Exactly one join shape applies depending on cardinality:
//
//   - ManyToOne / owning OneToOne: FKColumn on the source references the
//     target's primary key.
//   - OneToMany / owned OneToOne: TargetFKColumn on the target references the
//     source's primary key.
//   - ManyToMany: JoinTable links both primary keys.
type Relationship struct {
	Name        string      `yaml:"name"`
	Target      string      `yaml:"target"`
	Cardinality Cardinality `yaml:"cardinality"`
	Inverse     string      `yaml:"inverse"`

	FKColumn         string `yaml:"fk_column,omitempty"`
	TargetFKColumn   string `yaml:"target_fk_column,omitempty"`
	JoinTable        string `yaml:"join_table,omitempty"`
	JoinSourceColumn string `yaml:"join_source_column,omitempty"`
	JoinTargetColumn string `yaml:"join_target_column,omitempty"`
}

// Entity is one queryable model with its storage table, whitelisted columns,
// and allowed relationship traversals.
type Entity struct {
	Name          string         `yaml:"name"`
	Table         string         `yaml:"table"`
	PrimaryKey    string         `yaml:"primary_key"`
	Columns       []Column       `yaml:"columns"`
	Relationships []Relationship `yaml:"relationships"`
}

// Column looks up a column by name.
func (e *Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Relationship looks up a relationship by name.
func (e *Entity) Relationship(name string) (Relationship, bool) {
	for _, r := range e.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}

// DefaultMaxDepth bounds relationship traversal from any root entity.
const DefaultMaxDepth = 5

// Registry is the immutable set of queryable entities. Construct with New or
// LoadYAML; never mutate after construction.
type Registry struct {
	entities []Entity
	byName   map[string]int
	tables   map[string]bool
	maxDepth int
}

// Option configures registry construction.
type Option func(*Registry)

// WithMaxDepth overrides the default relationship traversal depth bound.
func WithMaxDepth(depth int) Option {
	return func(r *Registry) { r.maxDepth = depth }
}

// New builds a registry from the given entities, validating that every
// relationship targets a known entity, declares a matching inverse on the
// target, and that join metadata is consistent with its cardinality.
func New(entities []Entity, opts ...Option) (*Registry, error) {
	r := &Registry{
		entities: entities,
		byName:   make(map[string]int, len(entities)),
		tables:   make(map[string]bool, len(entities)),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}

	for i := range entities {
		e := &entities[i]
		if e.Name == "" || e.Table == "" {
			return nil, fmt.Errorf("entity %d: name and table are required", i)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		if e.PrimaryKey == "" {
			e.PrimaryKey = "id"
		}
		if _, ok := e.Column(e.PrimaryKey); !ok {
			return nil, fmt.Errorf("entity %q: primary key column %q not declared", e.Name, e.PrimaryKey)
		}
		r.byName[e.Name] = i
		r.tables[e.Table] = true
	}

	// Relationship validation needs the full name index, so it runs second.
	for _, e := range entities {
		for _, rel := range e.Relationships {
			target, ok := r.entity(rel.Target)
			if !ok {
				return nil, fmt.Errorf("entity %q: relationship %q targets unknown entity %q", e.Name, rel.Name, rel.Target)
			}
			back, ok := target.Relationship(rel.Inverse)
			if !ok {
				return nil, fmt.Errorf("entity %q: relationship %q has no inverse %q on %q", e.Name, rel.Name, rel.Inverse, rel.Target)
			}
			if back.Target != e.Name {
				return nil, fmt.Errorf("entity %q: inverse of %q points at %q, not back", e.Name, rel.Name, back.Target)
			}
			if back.Cardinality != rel.Cardinality.inverse() {
				return nil, fmt.Errorf("entity %q: relationship %q cardinality %s does not pair with inverse %s",
					e.Name, rel.Name, rel.Cardinality, back.Cardinality)
			}
			if err := validateJoinShape(e.Name, rel); err != nil {
				return nil, err
			}
			// Join tables are part of the whitelist surface: raw SQL may
			// reference them directly.
			if rel.JoinTable != "" {
				r.tables[rel.JoinTable] = true
			}
		}
	}

	return r, nil
}

func validateJoinShape(entity string, rel Relationship) error {
	switch rel.Cardinality {
	case ManyToOne:
		if rel.FKColumn == "" {
			return fmt.Errorf("entity %q: many_to_one relationship %q requires fk_column", entity, rel.Name)
		}
	case OneToMany:
		if rel.TargetFKColumn == "" {
			return fmt.Errorf("entity %q: one_to_many relationship %q requires target_fk_column", entity, rel.Name)
		}
	case OneToOne:
		if rel.FKColumn == "" && rel.TargetFKColumn == "" {
			return fmt.Errorf("entity %q: one_to_one relationship %q requires fk_column or target_fk_column", entity, rel.Name)
		}
	case ManyToMany:
		if rel.JoinTable == "" || rel.JoinSourceColumn == "" || rel.JoinTargetColumn == "" {
			return fmt.Errorf("entity %q: many_to_many relationship %q requires join table metadata", entity, rel.Name)
		}
	default:
		return fmt.Errorf("entity %q: relationship %q has unknown cardinality %q", entity, rel.Name, rel.Cardinality)
	}
	return nil
}

func (r *Registry) entity(name string) (*Entity, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &r.entities[i], true
}

// MaxDepth returns the configured traversal depth bound.
func (r *Registry) MaxDepth() int { return r.maxDepth }

// Entities returns all queryable entities in declaration order.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// ResolveEntity returns the entity with the given name, or an UnknownModel
// error. The message lists valid models: the whitelist is public, so this
// leaks nothing.
func (r *Registry) ResolveEntity(name string) (*Entity, error) {
	if e, ok := r.entity(name); ok {
		return e, nil
	}
	return nil, domain.NewQueryError(domain.KindUnknownModel,
		"unknown model %q (available: %s)", name, strings.Join(r.entityNames(), ", "))
}

func (r *Registry) entityNames() []string {
	names := make([]string, 0, len(r.entities))
	for _, e := range r.entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Hop is one relationship traversal step in a resolved path.
type Hop struct {
	From string // entity the hop leaves
	Rel  Relationship
}

// PathResolution is the outcome of resolving a dotted field path.
type PathResolution struct {
	Column Column
	Entity string // entity owning the terminal column
	Hops   []Hop
	Depth  int
}

// ResolvePath resolves a dotted path like "participants.species.name" from
// the given root entity: every intermediate segment must be a whitelisted
// relationship and the final segment a whitelisted column. Traversal beyond
// the registry's depth bound fails with JoinTooDeep; any unknown segment
// fails with InvalidField.
func (r *Registry) ResolvePath(root, path string) (PathResolution, error) {
	entity, err := r.ResolveEntity(root)
	if err != nil {
		return PathResolution{}, err
	}

	segments := strings.Split(path, ".")
	res := PathResolution{Entity: entity.Name}
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			if col, ok := entity.Column(seg); ok {
				res.Column = col
				res.Entity = entity.Name
				return res, nil
			}
			// A trailing relationship name is not a column.
			if _, ok := entity.Relationship(seg); ok {
				return PathResolution{}, domain.NewQueryError(domain.KindInvalidField,
					"field %q on %s is a relationship, not a column; select a column on %s", path, root, seg)
			}
			return PathResolution{}, domain.NewQueryError(domain.KindInvalidField,
				"unknown field %q on %s", path, root)
		}

		rel, ok := entity.Relationship(seg)
		if !ok {
			return PathResolution{}, domain.NewQueryError(domain.KindInvalidField,
				"unknown field %q on %s (segment %q)", path, root, seg)
		}
		res.Depth++
		if res.Depth > r.maxDepth {
			return PathResolution{}, domain.NewQueryError(domain.KindJoinTooDeep,
				"path %q exceeds the maximum join depth of %d", path, r.maxDepth)
		}
		res.Hops = append(res.Hops, Hop{From: entity.Name, Rel: rel})
		entity, _ = r.entity(rel.Target)
	}
	// Unreachable: the loop always returns on the last segment.
	return PathResolution{}, domain.NewQueryError(domain.KindInvalidField, "empty field path")
}

// IsTableAllowed reports whether a raw-SQL table reference is on the
// whitelist. References are matched case-insensitively with any schema
// qualifier stripped.
func (r *Registry) IsTableAllowed(table string) bool {
	name := strings.ToLower(table)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return r.tables[name]
}

// AllowedTables returns the sorted list of whitelisted table names,
// including many-to-many join tables.
func (r *Registry) AllowedTables() []string {
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EntityForTable returns the entity stored in the given table, if any.
func (r *Registry) EntityForTable(table string) (*Entity, bool) {
	name := strings.ToLower(table)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for i := range r.entities {
		if r.entities[i].Table == name {
			return &r.entities[i], true
		}
	}
	return nil, false
}
