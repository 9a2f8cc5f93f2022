package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "cli-test-secret", JWTExpiry: time.Hour}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(cfg)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenAdminCarriesPermissions(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	out, err := run(t, cfg, "token", "admin", userID.String(), "-p", string(model.PermissionProctoringRead))
	require.NoError(t, err)

	claims, err := service.NewAuthService(cfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, service.TokenTypeAdmin, claims.TokenType)
	assert.Equal(t, userID, claims.UserID)
	assert.True(t, claims.HasPermission(model.PermissionProctoringRead))
	assert.False(t, claims.HasPermission(model.PermissionProctoringExtend))
}

func TestTokenStudent(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	out, err := run(t, cfg, "token", "student", userID.String())
	require.NoError(t, err)

	claims, err := service.NewAuthService(cfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, service.TokenTypeStudent, claims.TokenType)
}

func TestTokenRejectsBadInput(t *testing.T) {
	_, err := run(t, testConfig(), "token", "student", "not-a-uuid")
	assert.Error(t, err)

	_, err = run(t, testConfig(), "token", "admin", uuid.NewString(), "-p", "exams:delete")
	assert.ErrorContains(t, err, "unknown permission")
}

func TestResolveFormat(t *testing.T) {
	f, err := resolveFormat("", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, formatJSON, f)

	f, err = resolveFormat("yaml", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, formatYAML, f)

	_, err = resolveFormat("xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRenderViolationRows(t *testing.T) {
	snap := "/uploads/proctoring-snapshots/a/1.jpg"
	rec := proctor.ViolationRecord{
		ID:           uuid.New(),
		Type:         proctor.ViolationTabSwitch,
		Description:  "Tab switch detected (1/3)",
		SnapshotPath: &snap,
		CreatedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	items := []violationRow{toViolationRow(rec)}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, items, nil, nil))
	var decoded []map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "tab_switch", decoded[0]["violation_type"])
	assert.Equal(t, snap, decoded[0]["snapshot_url"])
	assert.Equal(t, "2026-03-01T09:30:00.000Z", decoded[0]["created_at"])

	buf.Reset()
	require.NoError(t, render(&buf, formatJSON, items, nil, nil))
	var fromJSON []violationRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, items, fromJSON)

	buf.Reset()
	rows := [][]string{{items[0].CreatedAt, items[0].Type, items[0].Description, items[0].SnapshotURL}}
	require.NoError(t, render(&buf, formatTable, items, []string{"TIME", "TYPE", "DESCRIPTION", "SNAPSHOT"}, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[1], "tab_switch")
}

func TestExtensionsGrantValidatesBeforeConnecting(t *testing.T) {
	_, err := run(t, testConfig(), "extensions", "grant", uuid.NewString(), "0")
	assert.ErrorContains(t, err, "invalid extension")
}
