package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowlist_LoadsAndHasCriticalRules(t *testing.T) {
	serverRules, err := LoadAllowlist("", "server")
	require.NoError(t, err)
	require.NotEmpty(t, serverRules)

	requireAllowlistRule(t, serverRules, "/api/v1", RouteClassPublicAPI)
	requireAllowlistRule(t, serverRules, "/health", RouteClassOps)
	requireAllowlistRule(t, serverRules, "/debug/prometheus", RouteClassOps)
}

func TestClassifier_FallbackClasses(t *testing.T) {
	c := NewClassifier(nil)

	require.Equal(t, RouteClassPublicAPI, c.ClassifyPath("/api/v1/loads/sheets/july/analysis"))
	require.Equal(t, RouteClassInternalAPI, c.ClassifyPath("/loads/api/debug"))
	require.Equal(t, RouteClassUI, c.ClassifyPath("/"))
}

func requireAllowlistRule(t *testing.T, rules []AllowlistRule, prefix string, class RouteClass) {
	t.Helper()

	for _, rule := range rules {
		if rule.Prefix == prefix && rule.Class == class {
			return
		}
	}
	t.Fatalf("allowlist missing rule: %q -> %q", prefix, class)
}
