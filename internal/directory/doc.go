// ABOUTME: Package documentation for the directory package
// ABOUTME: Describes agent records and the capacity contract

// Package directory holds the authoritative record of human agents.
//
// The registry consults it for assignment validation and drives its
// bookkeeping through Attach and Detach: an agent whose active set reaches
// MaxConcurrentChats flips to busy, and back to online once it drops below.
// The directory persists through the store but treats memory as authoritative
// between writes.
package directory
