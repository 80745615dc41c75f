// Package resource bounds the work a behold process does at once.
//
// A Controller caps concurrent catalog scans with a weighted semaphore and
// throttles the bytes an index build writes with a token bucket.
package resource
