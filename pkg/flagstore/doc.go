// Package flagstore persists feature flag definitions and their overrides.
//
// Store is implemented by:
//
//   - MemoryStore, an in-process map guarded by a RWMutex, seeded directly or
//     from a YAML file via NewMemoryStoreFromFile.
//   - PostgresStore, which keeps each definition as a JSONB document in
//     feature_flags and overrides as rows of flag_overrides. The schema ships
//     as embedded goose migrations (Migrations, MigrationsDir).
//
// All implementations share the same write rules: Create generates a salt
// when none is given and starts at version 1; Update refuses to change the
// salt and bumps the version; every read returns a copy with expired
// overrides removed.
//
// The read side (Fetch, FetchAll) is what the evaluation cache loads from:
//
//	store, err := flagstore.NewMemoryStoreFromFile("flags.yaml")
//	if err != nil {
//		return err
//	}
//	eval := evaluator.New(store)
package flagstore
