package model

import "fmt"

// Scope is the notification audience of a session.
type Scope string

const (
	ScopeStudent Scope = "student"
	ScopeAdmin   Scope = "admin"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeStudent, ScopeAdmin:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q (want %q or %q)", s, ScopeStudent, ScopeAdmin)
	}
}
