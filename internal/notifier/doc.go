// Package notifier delivers outbound chat messages asynchronously: a bounded
// queue, a worker pool, a shared rate limit, retries with backoff and
// suppression of duplicates within a window.
//
// Duplicate suppression survives restarts when a storage.Store is given, so
// a daily plan is not pushed twice after a redeploy.
package notifier
