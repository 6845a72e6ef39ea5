// Package gateway holds the identity of field gateways and answers the one
// question every other component asks: does this bearer key belong to an
// active gateway?
//
// A gateway is created by an administrator. The plaintext key is returned
// exactly once in CreateResult and only its SHA-256 hash is stored.
// Authentication reads the store on every call, so deactivating a gateway
// takes effect on the very next check.
//
// Usage:
//
//	repo := gateway.NewSQLiteRepository(db.DB)
//	reg := gateway.NewRegistry(repo)
//	reg.SetLogger(log)
//
//	res, err := reg.Create(ctx, "north-yard", "")
//	gw, ok := reg.Authenticate(ctx, res.APIKey)
package gateway
