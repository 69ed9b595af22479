// Package identity holds actor identities and the repository delegate
// document the authorization rules consult.
package identity

// Identity is an actor identifier, typically a did:key string. It is opaque
// to this system; the storage layer is assumed to have verified it.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// Doc is the repository-level membership document: the set of identities
// with delegate privileges over its collaborative objects.
type Doc struct {
	Delegates []Identity `yaml:"delegates"`
}

// IsDelegate reports whether id carries delegate privileges.
func (d *Doc) IsDelegate(id Identity) bool {
	if d == nil {
		return false
	}
	for _, delegate := range d.Delegates {
		if delegate == id {
			return true
		}
	}
	return false
}
