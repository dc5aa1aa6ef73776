// Package lima wires the license-manager repositories to a database handle.
// A Store hands out one repository per resource type and can rebind them to
// a transaction.
package lima
