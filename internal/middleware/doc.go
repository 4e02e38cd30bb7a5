// Package middleware provides the HTTP middleware chain of the catalog API.
//
// It includes:
//   - Request IDs (X-Request-ID, generated with google/uuid when absent)
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
