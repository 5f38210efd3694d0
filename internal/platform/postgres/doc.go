// Package postgres provides PostgreSQL implementations of the store
// interfaces. Each store accepts a store.DBTX so it can run against either a
// database connection or a transaction; WithTx returns a transactional copy.
package postgres
