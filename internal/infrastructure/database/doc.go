// Package database provides the SQLite persistence layer for Voicematch.
//
// The service stores match audit records (one row per processed batch) so
// operators can review what the engine resolved and why. SQLite is a good
// fit: single writer, embedded, zero operational overhead.
//
// # Architecture
//
//	┌────────────┐     ┌───────────────┐     ┌──────────────────┐
//	│  audit pkg │────>│  database.DB  │────>│  voicematch.db   │
//	│ (repository)│    │ (pool + WAL)  │     │  (WAL journal)   │
//	└────────────┘     └───────────────┘     └──────────────────┘
//
// Schema changes are applied through embedded migrations. The migrations
// package registers its embedded filesystem at init time; callers run
// DB.Migrate after Open.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "data/voicematch.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
