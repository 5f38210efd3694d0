// Package domain defines the core business entities of the vision tagging
// system: tenants, credit ledgers, jobs, items, and usage records.
package domain
