// Package events defines platform events and the emitter that fans them out
// to registered handlers. Webhook handlers emit events instead of calling
// application services directly, keeping the HTTP layer free of scheduling
// and ledger dependencies.
package events
