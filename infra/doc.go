// Package infra holds technical adapters: the persistence backends,
// notification and event transports, collaborator clients and metric
// exporters. These packages depend only on interfaces defined under
// core and never on each other.
package infra
