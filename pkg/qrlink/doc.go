// Package qrlink turns user content into the single string a barcode encoder
// consumes, and owns the blob storage path that backs it.
//
// Small text and image files are inlined directly into the payload. Anything
// else is persisted through a BlobStore under the canonical key
// "{contentKey}.{displayName}" and referenced by a locator URL that the file
// gateway resolves by prefix and redirects to the durable object URL.
//
// Backends (memory, filesystem, S3) live under storage/, optional exact-key
// indexes (LRU, Redis, Postgres) under index/, and the HTTP surface under api/.
// Index hits that carry a URL are not re-validated against the backend; the
// prefix listing stays authoritative only when no index is configured or the
// index misses.
package qrlink
