// Package binding loads and validates the static table that maps canonical
// event channels onto federation object attributes or interaction parameters.
//
// The table is loaded once before the bridge starts and is read-only
// afterwards, so it is safe for concurrent reads without locking.
package binding

import (
	"fmt"
	"sort"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/hla"
)

// Kind selects the federation update a binding produces.
type Kind string

// Binding kinds
const (
	KindObject      Kind = "object"
	KindInteraction Kind = "interaction"
)

// FieldMapping maps one canonical field onto one attribute or parameter.
type FieldMapping struct {
	Source   string       `yaml:"source" json:"source"`
	Target   string       `yaml:"target" json:"target"`
	Encoding hla.Encoding `yaml:"encoding" json:"encoding"`
}

// Binding maps a channel onto a federation class. For object bindings the
// targets are attribute names of Class and Instance names the registered
// object; for interaction bindings the targets are parameter names.
type Binding struct {
	Channel  string         `yaml:"channel" json:"channel"`
	Kind     Kind           `yaml:"kind" json:"kind"`
	Class    string         `yaml:"class" json:"class"`
	Instance string         `yaml:"instance,omitempty" json:"instance,omitempty"`
	Fields   []FieldMapping `yaml:"fields" json:"fields"`
}

// ObjectClass is an object class with the union of its bound attributes.
type ObjectClass struct {
	Name       string
	Attributes []string
}

// InteractionClass is an interaction class with its bound parameters.
type InteractionClass struct {
	Name       string
	Parameters []string
}

// Instance is an object instance to register after joining.
type Instance struct {
	Name  string
	Class string
}

// Table is a validated, immutable set of bindings keyed by channel.
type Table struct {
	byChannel    map[string]*Binding
	channels     []string
	objects      []ObjectClass
	interactions []InteractionClass
	instances    []Instance
}

// NewTable validates bindings and builds a table.
func NewTable(bindings []Binding) (*Table, error) {
	t := &Table{byChannel: make(map[string]*Binding, len(bindings))}

	attrs := map[string]map[string]struct{}{}
	params := map[string]map[string]struct{}{}
	instanceClass := map[string]string{}

	for i := range bindings {
		b := bindings[i]
		b.Fields = append([]FieldMapping(nil), b.Fields...)

		if b.Kind == KindObject && b.Instance == "" {
			b.Instance = b.Channel
		}

		if err := validate(&b); err != nil {
			return nil, errors.WrapInvalid(err, "binding", "NewTable", fmt.Sprintf("binding %d", i))
		}
		if _, dup := t.byChannel[b.Channel]; dup {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate binding for channel %q", errors.ErrInvalidConfig, b.Channel),
				"binding", "NewTable", "check uniqueness")
		}

		switch b.Kind {
		case KindObject:
			if cls, ok := instanceClass[b.Instance]; ok && cls != b.Class {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: instance %q bound to both %s and %s",
						errors.ErrInvalidConfig, b.Instance, cls, b.Class),
					"binding", "NewTable", "check instances")
			} else if !ok {
				instanceClass[b.Instance] = b.Class
				t.instances = append(t.instances, Instance{Name: b.Instance, Class: b.Class})
			}
			collect(attrs, b.Class, b.Fields)
		case KindInteraction:
			collect(params, b.Class, b.Fields)
		}

		t.byChannel[b.Channel] = &b
		t.channels = append(t.channels, b.Channel)
	}

	for _, name := range sortedKeys(attrs) {
		t.objects = append(t.objects, ObjectClass{Name: name, Attributes: sortedKeys(attrs[name])})
	}
	for _, name := range sortedKeys(params) {
		t.interactions = append(t.interactions, InteractionClass{Name: name, Parameters: sortedKeys(params[name])})
	}

	return t, nil
}

func validate(b *Binding) error {
	if b.Channel == "" {
		return fmt.Errorf("%w: channel is required", errors.ErrInvalidConfig)
	}
	if b.Class == "" {
		return fmt.Errorf("%w: channel %q: class is required", errors.ErrInvalidConfig, b.Channel)
	}

	switch b.Kind {
	case KindObject:
	case KindInteraction:
		if b.Instance != "" {
			return fmt.Errorf("%w: channel %q: interactions have no instance", errors.ErrInvalidConfig, b.Channel)
		}
	default:
		return fmt.Errorf("%w: channel %q: unknown kind %q", errors.ErrInvalidConfig, b.Channel, b.Kind)
	}

	if len(b.Fields) == 0 {
		return fmt.Errorf("%w: channel %q: no field mappings", errors.ErrInvalidConfig, b.Channel)
	}

	sources := map[string]struct{}{}
	targets := map[string]struct{}{}
	for _, f := range b.Fields {
		if f.Source == "" || f.Target == "" {
			return fmt.Errorf("%w: channel %q: mapping needs source and target", errors.ErrInvalidConfig, b.Channel)
		}
		if _, err := hla.ParseEncoding(string(f.Encoding)); err != nil {
			return fmt.Errorf("channel %q field %q: %w", b.Channel, f.Source, err)
		}
		if _, dup := sources[f.Source]; dup {
			return fmt.Errorf("%w: channel %q: source %q mapped twice", errors.ErrInvalidConfig, b.Channel, f.Source)
		}
		if _, dup := targets[f.Target]; dup {
			return fmt.Errorf("%w: channel %q: target %q mapped twice", errors.ErrInvalidConfig, b.Channel, f.Target)
		}
		sources[f.Source] = struct{}{}
		targets[f.Target] = struct{}{}
	}
	return nil
}

func collect(into map[string]map[string]struct{}, class string, fields []FieldMapping) {
	set, ok := into[class]
	if !ok {
		set = map[string]struct{}{}
		into[class] = set
	}
	for _, f := range fields {
		set[f.Target] = struct{}{}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the binding for channel. The returned binding must not be modified.
func (t *Table) Lookup(channel string) (*Binding, bool) {
	b, ok := t.byChannel[channel]
	return b, ok
}

// Len returns the number of bindings.
func (t *Table) Len() int { return len(t.channels) }

// Channels returns bound channels in declaration order.
func (t *Table) Channels() []string { return append([]string(nil), t.channels...) }

// ObjectClasses returns bound object classes sorted by name.
func (t *Table) ObjectClasses() []ObjectClass { return append([]ObjectClass(nil), t.objects...) }

// InteractionClasses returns bound interaction classes sorted by name.
func (t *Table) InteractionClasses() []InteractionClass {
	return append([]InteractionClass(nil), t.interactions...)
}

// Instances returns object instances in declaration order.
func (t *Table) Instances() []Instance { return append([]Instance(nil), t.instances...) }
