// Package ratelimit provides a token bucket limiter used to shield the
// upstream API from bursts of page fetches. It complements, not replaces,
// the randomized jitter between pages.
package ratelimit
