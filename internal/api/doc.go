// Package api provides the HTTP handlers, error mapping, and request/response
// models for the service's REST surface: scan submission, job inspection,
// suggestion sync, tenant settings, and platform webhooks.
package api
