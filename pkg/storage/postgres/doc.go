// Package postgres provides the PostgreSQL connection layer and schema
// migrations for the platform.
//
// # Overview
//
// The package owns two things: a ConnectionManager that pools the primary
// and any read replicas, and the ordered migration list that builds the
// full schema. Every governed record table is created with a CHECK
// constraint guaranteeing it belongs to exactly one tenant: either a
// clinic or a personal workspace, never both and never neither.
//
// # Usage Example
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL: cfg.DatabaseURL,
//		MaxConns:   25,
//		MinConns:   5,
//		Timeout:    10 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cm.Close()
//
//	if err := postgres.RunMigrations(ctx, cm.Primary()); err != nil {
//		log.Fatal(err)
//	}
package postgres
