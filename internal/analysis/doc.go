// Package analysis defines the boundary between the application core and
// the external image analysis model, following the hexagonal architecture
// pattern. The core depends only on the Analyzer interface and the error
// taxonomy here; the concrete client lives in platform/vision.
package analysis
