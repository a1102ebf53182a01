// Package store persists bridge data in SQLite.
//
// Two tables are managed:
//   - subscriptions: the variable subscriptions of the instance, loaded by
//     the bridge at start-up so bindings survive restarts
//   - facet_history: one row per device state change, queryable newest
//     first through the API and pruned by age
//
// Store satisfies kommander.SubscriptionStore and kommander.StateObserver.
// Facet changes arrive on the bridge's event loop, so FacetChanged only
// queues them; a background writer started with Start does the inserts.
package store
