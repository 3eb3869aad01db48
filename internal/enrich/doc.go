// Package enrich fetches content metadata for accepted ads from the remote
// content API and maps it into catalog records.
//
// Enrichment is best effort. Every failure is reported as ErrSkip so the
// caller can log it and move on to the next ad.
package enrich
