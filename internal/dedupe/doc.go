// ABOUTME: Package doc for dedupe
// ABOUTME: TTL cache for dropping redelivered webhook updates

// Package dedupe remembers recently seen delivery ids so webhook retries do
// not become duplicate messages. Entries expire after a TTL and the cache is
// capped, evicting oldest-first when full.
package dedupe
