// Package transport posts signed protocol messages to the registry over HTTP.
//
// The [Client] sends the exact bytes it is given as an application/xml body
// and returns the raw response body. It never parses or rewrites messages;
// signature verification happens after the bytes leave this package.
//
// # Retry Behavior
//
// Retries are disabled by default: a signed transaction that reached the
// registry must not be replayed implicitly. A [RetryConfig] with MaxRetries
// above zero enables jittered exponential backoff for these status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// Network failures are retried under the same budget.
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package transport
