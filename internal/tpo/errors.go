package tpo

import "fmt"

// UnsupportedVendorCapabilityError is returned when a request is built with
// an explicitly supplied vendor that does not implement the requested kind.
type UnsupportedVendorCapabilityError struct {
	Kind   Kind
	Vendor Vendor
}

func (e *UnsupportedVendorCapabilityError) Error() string {
	return fmt.Sprintf("request %q is not implemented for vendor %q", e.Kind, e.Vendor)
}

// RouteNotConfiguredError is returned when no base URL or route template
// exists for the active environment, or when a template placeholder cannot
// be resolved. This is a configuration error, never a runtime one.
type RouteNotConfiguredError struct {
	Kind        Kind
	Environment Environment
}

func (e *RouteNotConfiguredError) Error() string {
	return fmt.Sprintf("route for request %q on environment %q is not configured", e.Kind, e.Environment)
}

// UnsupportedRequestBodyError is returned when no body schema exists for the
// vendor's (implementation, version) pair.
type UnsupportedRequestBodyError struct {
	Kind           Kind
	Implementation Implementation
	Version        Version
}

func (e *UnsupportedRequestBodyError) Error() string {
	return fmt.Sprintf("request body for %q, implementation %q and version %q is not supported",
		e.Kind, e.Implementation, e.Version)
}
