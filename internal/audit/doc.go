// Package audit records admin mutations (gateway creation, toggles,
// deletions and device edits) in the audit_logs table and lists them back
// newest first.
package audit
