// Package device keeps the inventory of devices reported by gateways.
//
// Devices are created only by reconciliation: a gateway presents its API key
// and the list of devices it hosts every time it boots, and the Reconciler
// merges that list into the store. Administrators may edit a device's
// description or delete it; nothing else about a device changes.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                          Device Inventory                          │
//	│                                                                    │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────┐  │
//	│  │    Reconciler    │    │    Repository    │    │   Registry   │  │
//	│  │ (reconciler.go)  │───▶│  (repository.go) │◀───│ (registry.go)│  │
//	│  │                  │    │                  │    │              │  │
//	│  │ • gateway auth   │    │ • natural key    │    │ • admin list │  │
//	│  │ • skip blanks    │    │ • insert-or-skip │    │ • describe   │  │
//	│  │ • ordered sweep  │    │ • joined views   │    │ • delete     │  │
//	│  └──────────────────┘    └──────────────────┘    └──────────────┘  │
//	└────────────────────────────────────────────────────────────────────┘
//
// # Natural key
//
// A gateway refers to "the same device" across reboots by (name, type,
// gateway_id). The devices table carries a UNIQUE constraint on that triple
// and InsertIfAbsent uses INSERT ... ON CONFLICT DO NOTHING, so two
// concurrent registrations of the same list converge on one row each. The
// lookup the Reconciler performs first only saves a write.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	rec := device.NewReconciler(gatewayRegistry, repo)
//
//	reg, err := rec.Register(ctx, apiKey, []device.Reported{
//	    {Name: "cam1", Type: device.TypeCamera},
//	})
package device
