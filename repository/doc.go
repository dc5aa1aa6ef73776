// Package repository provides ResourceRepository, a generic active-record
// style data access object bound to one table and one integer primary key,
// with allow-listed filtering, audit stamping and a per-type singleton
// registry.
package repository
