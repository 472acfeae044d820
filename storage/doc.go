// Package storage provides the persistence interfaces for the authorization
// proxy: registered clients, in-flight authorization flows, and the token
// vault mapping proxy-issued bearer tokens to upstream provider tokens.
//
// The interfaces are defined here; the in-memory implementation lives in
// storage/memory. All flow state is single-use and time-bounded: consume
// operations delete atomically, and expired records are treated as absent.
package storage
