// Package postgres implements the storage interfaces of the service
// packages against PostgreSQL through database/sql and lib/pq.
//
// Store is the subscription.TxRunner: every subscribe and confirm runs in
// one transaction obtained from it, and the repositories handed to the
// callback share that transaction.
package postgres
