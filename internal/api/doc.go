// Package api is a minimal Alpaca REST client: account and market clock
// lookups used to verify credentials before a stream is opened.
//
// Requests are retried with jittered exponential backoff on 5xx and 429.
package api
