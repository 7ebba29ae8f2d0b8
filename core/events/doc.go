// Package events defines the domain events emitted by the dispatch core and
// the Publisher they are sent through.
//
// Event names:
//   - incident-reported: a new incident was recorded
//   - dispatched: a vehicle and hospital were assigned to an incident
//   - vehicle-status-changed: a vehicle moved through its lifecycle
//   - vehicle-location-changed: a vehicle position update
//   - vehicle-locations-updated: all positions moved during one tick
//   - incident-status-changed: an incident moved through its lifecycle
//   - hospital-load-changed: a hospital load was adjusted
package events
