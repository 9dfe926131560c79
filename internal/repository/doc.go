// Package repository persists the stage server's accounts and stages.
//
// Two implementations share the Users and Stages interfaces: an in-memory one
// used by tests and the -dev server, and a PostgreSQL one built on pgxpool.
// Stage writes are compare-and-set on the state the caller read, so two
// requests racing on the same stage cannot both apply a transition.
package repository
