// Package vision implements the analysis.Analyzer interface against
// Google's Gemini multimodal API. It is the single place where analyzer
// failures are classified as transient or terminal.
package vision
