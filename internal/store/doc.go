// Package store defines the run history persistence contract. Implementations
// live elsewhere (store/memory, storage/postgres); this package must not
// import database drivers.
package store
