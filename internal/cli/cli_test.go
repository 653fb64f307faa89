package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-autobuy/internal/config"
	"github.com/iliyamo/ticket-autobuy/internal/model"
	"github.com/iliyamo/ticket-autobuy/internal/utils"
)

type memRules struct{ stored []model.ApprovalRule }

func (m *memRules) CreateBulkTx(ctx context.Context, rules []model.ApprovalRule) error {
	m.stored = append(m.stored, rules...)
	return nil
}

func run(t *testing.T, store *memRules, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommandWith(&RootOptions{
		LoadConfig: func() config.Config { return config.Config{JWTSecret: "k", AccessTTLMin: 15} },
		OpenRules: func(config.Config) (RuleWriter, func(), error) {
			return store, func() {}, nil
		},
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"token"}, {"rules", "import"}, {"normalize"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestNormalize(t *testing.T) {
	out, err := run(t, nil, "normalize", "section", "134")
	require.NoError(t, err)
	assert.Equal(t, "100x\n", out)

	out, err = run(t, nil, "normalize", "row", "zz")
	require.NoError(t, err)
	assert.Equal(t, "52\n", out)

	out, err = run(t, nil, "normalize", "section", "VIP")
	require.NoError(t, err)
	assert.Equal(t, "unrecognized\n", out)

	out, err = run(t, nil, "--format", "json", "normalize", "row", "C")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "3", got["value"])
	assert.Equal(t, true, got["ok"])

	_, err = run(t, nil, "normalize", "seat", "1")
	assert.Error(t, err)
	_, err = run(t, nil, "--format", "xml", "normalize", "row", "1")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, err := run(t, nil, "token", "--subject", "alice")
	require.NoError(t, err)
	claims, err := utils.ParseAccessToken("k", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, utils.RoleOperator, claims.Role)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestRulesImport(t *testing.T) {
	p := writeFile(t, `
- section: "134"
  min_row: C
- event_id: E1
  section: 200x
  min_row: 10
`)
	store := &memRules{}
	out, err := run(t, store, "rules", "import", p)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 rule(s)")
	require.Len(t, store.stored, 2)
	assert.Nil(t, store.stored[0].EventID)
	assert.Equal(t, "100x", store.stored[0].Section)
	assert.Equal(t, 3, store.stored[0].MinRow)
	require.NotNil(t, store.stored[1].EventID)
	assert.Equal(t, "E1", *store.stored[1].EventID)
	assert.Equal(t, 10, store.stored[1].MinRow)
}

func TestRulesImport_DryRunWritesNothing(t *testing.T) {
	p := writeFile(t, "- section: 150\n  min_row: 1\n")
	store := &memRules{}
	out, err := run(t, store, "rules", "import", "--dry-run", p)
	require.NoError(t, err)
	assert.Contains(t, out, "validated 1 rule(s)")
	assert.Empty(t, store.stored)
}

func TestParseRulesFile_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"bad section":   "- section: VIP\n  min_row: 1\n",
		"bad row":       "- section: 134\n  min_row: AB\n",
		"unknown field": "- section: 134\n  min_row: 1\n  max_row: 4\n",
		"empty":         "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRulesFile(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}
