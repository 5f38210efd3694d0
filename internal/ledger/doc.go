// Package ledger implements the credit admission controller: the sole gate
// deciding whether a batch of analysis work may be scheduled for a tenant.
package ledger
