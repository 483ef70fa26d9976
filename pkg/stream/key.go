// Package stream derives per-stream identity and destination names.
package stream

// DefaultNamespace is substituted when a stream carries no namespace.
const DefaultNamespace = "default"

// Key identifies a stream by name and namespace. It is comparable and is
// used directly as a map key.
type Key struct {
	Name      string
	Namespace string
}

// NewKey builds a Key, defaulting an empty namespace.
func NewKey(name, namespace string) Key {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Key{Name: name, Namespace: namespace}
}

func (k Key) String() string {
	return k.Name + ":" + k.Namespace
}
