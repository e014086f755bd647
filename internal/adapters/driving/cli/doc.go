// Package cli implements the knowhub command-line interface. Commands are
// thin adapters over the driving ports; all pipeline behaviour lives in the
// core services.
package cli
