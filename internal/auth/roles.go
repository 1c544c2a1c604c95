package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles reads claim as a list of roles. A single string is split on spaces
// and commas, the way scope-style claims are encoded.
func Roles(claims jwt.MapClaims, claim string) []string {
	switch raw := claims[claim].(type) {
	case string:
		return strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' })
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return raw
	}
	return nil
}

// RoleChecker returns a check that passes when the request claims hold any
// of the wanted roles. Requests without claims hold no roles.
func RoleChecker(claim string) func(ctx context.Context, roles []string) bool {
	return func(ctx context.Context, roles []string) bool {
		claims, ok := ClaimsFromContext(ctx)
		if !ok {
			return false
		}
		have := Roles(claims, claim)
		for _, want := range roles {
			if slices.Contains(have, want) {
				return true
			}
		}
		return false
	}
}
