package external

import (
	"net"
	"regexp"
)

// InterfaceResolver satisfies internal/dispatcher's InterfaceResolver seam.
// Actually entering another network namespace to enumerate its interfaces is
// out of scope here (same boundary as NamespaceLister's netns listing); this
// resolver filters the calling process's own interface set by regex, which
// is correct for the common case where capture units run in the root
// namespace and only the regex half of the fan-out table matters.
type InterfaceResolver struct{}

func NewInterfaceResolver() InterfaceResolver {
	return InterfaceResolver{}
}

func (InterfaceResolver) ResolveInterfaces(namespace, regex string) ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	if regex == "" {
		names := make([]string, len(ifaces))
		for i, iface := range ifaces {
			names[i] = iface.Name
		}
		return names, nil
	}
	re, err := regexp.Compile(regex)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, iface := range ifaces {
		if re.MatchString(iface.Name) {
			matched = append(matched, iface.Name)
		}
	}
	return matched, nil
}
