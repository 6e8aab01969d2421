// Package store provides rules.Store implementations.
//
// # Backends
//
//   - Memory: maps guarded by a RWMutex, populated from a Document
//   - File: a YAML Document served from memory, reloaded on change via fsnotify
//   - SQLite: durable single-node storage (modernc.org/sqlite)
//   - PostgreSQL: shared storage through a pgx pool
//
// CachedStore wraps any backend with a cross-run sender category cache,
// either in-process (MemoryCategoryCache) or shared (RedisCategoryCache).
//
// # Document Format
//
//	users:
//	  - id: user1
//	    rules:
//	      - id: r1
//	        name: Archive newsletters
//	        conditional_operator: AND
//	        from: "*@news.example.com"
//	    groups:
//	      - id: g1
//	        name: VIPs
//	        items:
//	          - {type: FROM, value: boss@example.com}
//	    categories:
//	      - {id: catA, name: Newsletter}
//	    senders:
//	      - {address: digest@news.example.com, category: catA}
//
// Rules are listed in priority order. Disabled rules are stored but never
// returned by LoadRules.
//
// # Thread Safety
//
// All backends are safe for concurrent use.
package store
