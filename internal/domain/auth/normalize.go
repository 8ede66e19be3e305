package auth

// Normalize maps raw ID token claims into a CanonicalIdentity.
// Precedence (first non-empty wins):
//   - name:  name, preferred_username
//   - email: preferred_username, email
//   - roles: roles, groups, empty
//
// Role order and duplicates are preserved as sent by the provider.
func Normalize(claims map[string]any) CanonicalIdentity {
	return CanonicalIdentity{
		Subject:  claimString(claims, "sub"),
		Name:     firstNonEmpty(claimString(claims, "name"), claimString(claims, "preferred_username")),
		Email:    firstNonEmpty(claimString(claims, "preferred_username"), claimString(claims, "email")),
		TenantID: claimString(claims, "tid"),
		ObjectID: claimString(claims, "oid"),
		Roles:    firstNonEmptyList(claimStrings(claims, "roles"), claimStrings(claims, "groups")),
	}
}

func claimString(claims map[string]any, key string) string {
	if claims == nil {
		return ""
	}
	s, _ := claims[key].(string)
	return s
}

// claimStrings accepts both decoded JSON arrays ([]any) and []string.
// Non-string members are skipped.
func claimStrings(claims map[string]any, key string) []string {
	if claims == nil {
		return nil
	}
	switch v := claims[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return []string{}
}
