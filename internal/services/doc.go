// Package services defines the shared error vocabulary for external tool
// integrations. Every caller-visible failure carries a stable machine code
// plus the raw diagnostic text from the tool, so front ends can map codes to
// localized guidance while logs keep the original detail.
package services
