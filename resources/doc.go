// Package resources holds the concrete license-manager repositories built on
// repository.ResourceRepository.
package resources
