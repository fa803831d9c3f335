// Package captureunit enumerates capture units — (src_interface, network
// namespace) pairs — from a RuntimeConfig.
package captureunit

import (
	"regexp"
	"sort"
)

// Unit is one (source interface, network namespace) pair a Dispatcher is
// built for. Namespace is "" for the root namespace.
type Unit struct {
	Interface string
	Namespace string
}

// NamespaceLister abstracts host network-namespace enumeration so this
// package has no direct Linux syscall dependency; the real implementation
// lives behind internal/external's platform capability.
type NamespaceLister interface {
	// ListNamespaces returns every network namespace name visible on the
	// host (e.g. from /var/run/netns). Returns (nil, nil) on platforms with
	// no namespace concept.
	ListNamespaces() ([]string, error)
}

// Enumerate builds the capture unit list: one unit per configured source
// interface in the root namespace (or a single ("", root) unit if none are
// configured), plus one root-less unit per namespace matched by
// extraNetnsRegex, sorted for determinism.
func Enumerate(sourceInterfaces []string, extraNetnsRegex string, lister NamespaceLister) ([]Unit, error) {
	var units []Unit
	if len(sourceInterfaces) == 0 {
		units = append(units, Unit{Interface: "", Namespace: ""})
	} else {
		for _, iface := range sourceInterfaces {
			units = append(units, Unit{Interface: iface, Namespace: ""})
		}
	}

	if extraNetnsRegex == "" || lister == nil {
		return units, nil
	}

	re, err := regexp.Compile(extraNetnsRegex)
	if err != nil {
		return nil, err
	}

	namespaces, err := lister.ListNamespaces()
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, ns := range namespaces {
		if re.MatchString(ns) {
			matched = append(matched, ns)
		}
	}
	sort.Strings(matched)

	for _, ns := range matched {
		units = append(units, Unit{Interface: "", Namespace: ns})
	}
	return units, nil
}
