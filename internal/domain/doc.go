// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (connection.go, message.go, errors.go) hold the shared
// types used by the relay and its transport adapters. No implementation code, just
// contracts and value types.
package domain
