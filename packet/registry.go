package packet

import (
	"errors"
	"fmt"
	"reflect"
)

// Factory returns a zero packet ready for Decode.
type Factory func() Packet

// Mapping assigns an id to a packet from Since until the next mapping of
// the same registration, or MaxVersion.
type Mapping struct {
	ID    int32
	Since Version
}

func Map(id int32, since Version) Mapping {
	return Mapping{ID: id, Since: since}
}

var (
	ErrDuplicatePacketID   = errors.New("duplicate packet id")
	ErrDuplicatePacketType = errors.New("packet type registered twice")
	ErrMappingOrder        = errors.New("mappings not in ascending version order")
)

// RegistryBuildError reports an inconsistent packet table. The server
// must not start with one.
type RegistryBuildError struct {
	State     State
	Direction Direction
	Version   Version
	ID        int32
	Type      string
	Err       error
}

func (e *RegistryBuildError) Error() string {
	return fmt.Sprintf("packet registry: %s %s %s id 0x%02X (%s): %v",
		e.State, e.Direction, e.Version, e.ID, e.Type, e.Err)
}

func (e *RegistryBuildError) Unwrap() error {
	return e.Err
}

type registration struct {
	state    State
	dir      Direction
	factory  Factory
	typ      reflect.Type
	mappings []Mapping
}

// Builder collects registrations. It is not safe for concurrent use.
type Builder struct {
	regs []registration
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Register(state State, dir Direction, factory Factory, mappings ...Mapping) {
	b.regs = append(b.regs, registration{
		state:    state,
		dir:      dir,
		factory:  factory,
		typ:      reflect.TypeOf(factory()),
		mappings: mappings,
	})
}

type tableKey struct {
	state   State
	dir     Direction
	version Version
}

// Build expands every registration over the supported versions. The
// result is immutable and safe to share between connections.
func (b *Builder) Build() (*Registry, error) {
	reg := &Registry{tables: make(map[tableKey]*Table)}

	for _, r := range b.regs {
		for i := 1; i < len(r.mappings); i++ {
			if r.mappings[i].Since <= r.mappings[i-1].Since {
				return nil, &RegistryBuildError{
					State: r.state, Direction: r.dir, Version: r.mappings[i].Since,
					ID: r.mappings[i].ID, Type: r.typ.String(), Err: ErrMappingOrder,
				}
			}
		}

		for _, v := range versions {
			id, ok := mappedID(r.mappings, v)
			if !ok {
				continue
			}

			key := tableKey{r.state, r.dir, v}
			t := reg.tables[key]
			if t == nil {
				t = newTable()
				reg.tables[key] = t
			}

			buildErr := &RegistryBuildError{
				State: r.state, Direction: r.dir, Version: v,
				ID: id, Type: r.typ.String(),
			}
			if _, dup := t.byID[id]; dup {
				buildErr.Err = ErrDuplicatePacketID
				return nil, buildErr
			}
			if _, dup := t.byType[r.typ]; dup {
				buildErr.Err = ErrDuplicatePacketType
				return nil, buildErr
			}
			t.byID[id] = r.factory
			t.byType[r.typ] = id
		}
	}
	return reg, nil
}

func mappedID(mappings []Mapping, v Version) (id int32, ok bool) {
	for _, m := range mappings {
		if m.Since > v {
			break
		}
		id, ok = m.ID, true
	}
	return
}

// Registry resolves packet ids per (State, Direction, Version).
type Registry struct {
	tables map[tableKey]*Table
}

var emptyTable = newTable()

// Table returns the id table for one connection phase. It is never nil;
// combinations without packets yield an empty table.
func (r *Registry) Table(state State, dir Direction, v Version) *Table {
	if t, ok := r.tables[tableKey{state, dir, v}]; ok {
		return t
	}
	return emptyTable
}

// Lookup returns a fresh packet for id, or false on a miss.
func (r *Registry) Lookup(state State, dir Direction, v Version, id int32) (Packet, bool) {
	return r.Table(state, dir, v).Lookup(id)
}

// Table is the id bijection of one (State, Direction, Version).
type Table struct {
	byID   map[int32]Factory
	byType map[reflect.Type]int32
}

func newTable() *Table {
	return &Table{
		byID:   make(map[int32]Factory),
		byType: make(map[reflect.Type]int32),
	}
}

func (t *Table) Lookup(id int32) (Packet, bool) {
	f, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return f(), true
}

// ID returns the id assigned to the dynamic type of p.
func (t *Table) ID(p Packet) (int32, bool) {
	id, ok := t.byType[reflect.TypeOf(p)]
	return id, ok
}

// Len reports the number of packets in the table.
func (t *Table) Len() int {
	return len(t.byID)
}
