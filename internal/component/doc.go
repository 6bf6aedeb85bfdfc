// Package component provides the central "glue" for pluggable component
// implementations.
//
// A component is an implementation of a capability interface (for example a
// UI Button) selected by a symbolic type identifier (for example a
// string-based enum constant naming a design-system variant). Implementations
// self-declare the capability and the identifier they serve through a Module;
// callers never reference the concrete implementation.
//
// The Registry is built once, on first access, by asking every Module to
// declare its implementations into a Catalog. Two declarations for the same
// (capability, identifier) pair make the build fail with a
// *DuplicateRegistrationError, so wiring mistakes surface at startup. An
// identifier nobody declared fails with *UnresolvedComponentTypeError only
// when it is first requested.
//
// After the build the registration table is read-only. Resolved instances are
// memoized per (capability, identifier, owner) so that, for instance, one UI
// driver handle is wrapped only once per component type.
package component
