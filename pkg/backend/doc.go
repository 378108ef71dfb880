// Package backend is the registry of storage namespaces (backends).
// It owns every types.Backend instance; resources elsewhere in the
// daemon hold only a read-only pointer obtained from here. It also
// tracks how many in-flight resources reference a backend so that
// namespace_unregister can refuse to remove one still in use, and
// synthesises ephemeral remote-backend handles for unregistered
// namespace-ids that carry a hostname (spec.md §9's open question).
package backend
