// Package infra holds the adapters behind the dispatch core: the memory and
// SQLite stores, MQTT and Redis event publishers, metrics sinks, the ORS
// routing client and Sentry reporting. Adapters implement interfaces owned
// by core packages; apart from the shared zerolog logger they do not import
// one another.
package infra
