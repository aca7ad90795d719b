// Package repositories implements SQLite persistence for the watcher's state.
//
// Key Implementations:
//   - [RegistryRepository] : the tracked playlist registry, replaced as a whole in one transaction
//   - [RunRepository] : history of reconciliation cycles
//
// Schema lives in shared/sql and is applied by [shared.RunMigrations].
package repositories
