// Package storage persists typed tables and free-form JSON documents under
// a single abstract contract with interchangeable physical backends:
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                          Store                                │
//	├───────────────┬──────────────┬───────────────┬────────────────┤
//	│ ColumnarStore │  TextStore   │ ContainerStore│  MemoryStore   │
//	│ dir of .stcf  │ dir of .stcsv│ one bbolt file│ shared map     │
//	│ + sidecars    │ + sidecars   │ named buckets │ deep copies    │
//	├───────────────┴──────────────┴───────────────┴────────────────┤
//	│ PostgresStore: one artifacts row per table/document (pgx)     │
//	└───────────────────────────────────────────────────────────────┘
//
// Callers obtain one backend at construction time (see Open) and use only
// the Store interface afterward; shared logic never branches on backend
// identity. Every write also persists the table's header as a companion
// artifact so units, dtypes and time representations survive formats that
// cannot carry them natively.
//
// The layer assumes at most one writer per artifact name at a time. No
// backend takes locks around artifacts, so concurrent writers to the same
// name race (last writer wins, and a table may pair with the other writer's
// header); serializing such writers is a caller obligation. Reads against the
// in-memory backend are always safe because values are deep-copied on
// every access.
package storage
