//go:build !linux

package external

// listNamespaces returns no namespaces on platforms with no netns concept,
// matching captureunit.Enumerate's "(nil, nil) on platforms with no
// namespace concept" contract.
func listNamespaces() ([]string, error) {
	return nil, nil
}
