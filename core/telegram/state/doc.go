// Package state keeps short-lived per-chat conversation steps and serializes
// update handling per chat. Steps are opaque strings owned by the caller and
// expire after a TTL; they are never the source of truth for domain data.
package state
