// Package github loads documents from GitHub repositories for ingestion.
//
// A target of the form "owner/repo" or "owner/repo@ref" (optionally
// prefixed with github.com/) is resolved to the repository's markdown
// and plain-text files via one recursive git-tree call plus one blob
// fetch per document. Source code, binaries, and oversized files are
// skipped; the loader ingests documentation, not code.
//
// Authentication is a personal access token. Without one the loader
// still works against public repositories at the lower unauthenticated
// quota. All API calls go through a dual-strategy rate limiter: a
// proactive token bucket, plus reactive tracking of the X-RateLimit-*
// headers GitHub returns on every response.
package github
