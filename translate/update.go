package translate

import (
	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/hla"
)

// AttributeValue is one mapped field, both decoded and encoded.
type AttributeValue struct {
	Name     string
	Source   string
	Value    canonical.Value
	Encoding hla.Encoding
	Encoded  []byte
}

// Update is a federation operation produced from a single event.
// Kind selects an attribute update of Instance or an interaction of Class.
type Update struct {
	Kind     binding.Kind
	Class    string
	Instance string
	Channel  string
	Time     canonical.Time
	Values   []AttributeValue
}

// Value returns the decoded value sent for attribute or parameter name.
func (u *Update) Value(name string) (canonical.Value, bool) {
	for _, av := range u.Values {
		if av.Name == name {
			return av.Value, true
		}
	}
	return canonical.Value{}, false
}

// Encoded returns the attribute or parameter payloads keyed by name.
func (u *Update) Encoded() map[string][]byte {
	out := make(map[string][]byte, len(u.Values))
	for _, av := range u.Values {
		out[av.Name] = av.Encoded
	}
	return out
}
