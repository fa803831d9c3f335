package external

// NamespaceLister satisfies internal/captureunit's NamespaceLister seam,
// keeping the one Linux-specific path (reading /var/run/netns) behind a
// build tag like the rest of the platform-specific external collaborators;
// it does not go through the Capability interface.
type NamespaceLister struct{}

func NewNamespaceLister() NamespaceLister {
	return NamespaceLister{}
}

func (NamespaceLister) ListNamespaces() ([]string, error) {
	return listNamespaces()
}
