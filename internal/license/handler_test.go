package license

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urlic/licenced/internal/config"
	"github.com/urlic/licenced/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

func testHandler(t *testing.T) (*Handler, config.LicenseConfig) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.LicenseConfig{
		KeysDir:         filepath.Join(dir, "keys"),
		LicensesDir:     filepath.Join(dir, "licenses"),
		DefinitionsFile: filepath.Join(dir, "config", "license_definitions.json"),
	}
	return NewHandler(cfg), cfg
}

func generateTestLicense(t *testing.T, h *Handler, params map[string]string) *License {
	t.Helper()

	base := map[string]string{
		"user_name":  "Ada Lovelace",
		"user_email": "ada@example.com",
	}
	for k, v := range params {
		base[k] = v
	}

	res, err := h.Execute(OpGenerate, base)
	require.NoError(t, err)

	var lic License
	require.NoError(t, json.Unmarshal(res.Data, &lic))
	return &lic
}

func TestGenerateAndGetInfo(t *testing.T) {
	h, cfg := testHandler(t)

	lic := generateTestLicense(t, h, map[string]string{
		"licence_type": "enterprise",
		"product":      "router",
	})

	assert.NotEmpty(t, lic.LicenseID)
	assert.Equal(t, "enterprise", lic.LicenceType)

	// The license and its checksum sidecar are on disk.
	path := filepath.Join(cfg.LicensesDir, LicenseFileName)
	_, err := os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + checksumSuffix)
	require.NoError(t, err)

	res, err := h.Execute(OpGetInfo, nil)
	require.NoError(t, err)

	var info License
	require.NoError(t, json.Unmarshal(res.Data, &info))
	assert.Equal(t, "Ada Lovelace", info.UserName)
	assert.Equal(t, "router", info.Product)
}

func TestVerify(t *testing.T) {
	h, _ := testHandler(t)

	t.Run("missing license", func(t *testing.T) {
		_, err := h.Execute(OpVerify, nil)
		assert.Error(t, err)
	})

	generateTestLicense(t, h, nil)

	t.Run("valid", func(t *testing.T) {
		res, err := h.Execute(OpVerify, nil)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(res.Data, &out))
		assert.Equal(t, true, out["valid"])
		assert.Equal(t, "Ada Lovelace", out["user"])
	})

	t.Run("expired", func(t *testing.T) {
		_, err := h.Execute(OpUpdate, map[string]string{"new_expiry": "2020-01-01"})
		require.NoError(t, err)

		_, err = h.Execute(OpVerify, nil)
		assert.ErrorContains(t, err, "expired")

		// check_expiry=false skips the expiry check.
		_, err = h.Execute(OpVerify, map[string]string{"check_expiry": "false"})
		assert.NoError(t, err)
	})
}

func TestVerifyAgainstDefinitions(t *testing.T) {
	h, _ := testHandler(t)
	generateTestLicense(t, h, map[string]string{"licence_type": "pro"})

	defs := `{"plans":{"pro":{"max_nodes":10}}}`
	_, err := h.Execute(OpUpdateDefinitions, map[string]string{"definitions_json": defs})
	require.NoError(t, err)

	// Known plan verifies.
	_, err = h.Execute(OpVerify, nil)
	require.NoError(t, err)

	// Unknown plan is rejected once definitions exist.
	_, err = h.Execute(OpUpdate, map[string]string{"licence_type": "bootleg"})
	require.NoError(t, err)
	_, err = h.Execute(OpVerify, nil)
	assert.ErrorContains(t, err, "unknown license type")
}

func TestGetPlan(t *testing.T) {
	h, _ := testHandler(t)
	generateTestLicense(t, h, map[string]string{
		"licence_type": "pro",
		"license_tier": "gold",
	})

	res, err := h.Execute(OpGetPlan, nil)
	require.NoError(t, err)

	var plan map[string]string
	require.NoError(t, json.Unmarshal(res.Data, &plan))
	assert.Equal(t, "pro", plan["license_type"])
	assert.Equal(t, "gold", plan["license_tier"])
	assert.Equal(t, "Unknown", plan["product"])
}

func TestUpdate(t *testing.T) {
	h, _ := testHandler(t)
	generateTestLicense(t, h, nil)

	future := time.Now().AddDate(2, 0, 0).Format(dateLayout)
	res, err := h.Execute(OpUpdate, map[string]string{
		"new_expiry":   future,
		"licence_type": "enterprise",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "updated successfully")

	info, err := h.Execute(OpGetInfo, nil)
	require.NoError(t, err)

	var lic License
	require.NoError(t, json.Unmarshal(info.Data, &lic))
	assert.Equal(t, future, lic.ValidUntil)
	assert.Equal(t, "enterprise", lic.LicenceType)

	t.Run("bad expiry rejected", func(t *testing.T) {
		_, err := h.Execute(OpUpdate, map[string]string{"new_expiry": "not-a-date"})
		assert.Error(t, err)
	})
}

func TestDefinitionsRoundTrip(t *testing.T) {
	h, cfg := testHandler(t)

	t.Run("missing definitions", func(t *testing.T) {
		_, err := h.Execute(OpGetDefinitions, nil)
		assert.Error(t, err)
	})

	defs := `{"plans":{"pro":{"max_nodes":10},"enterprise":{"max_nodes":100}}}`
	res, err := h.Execute(OpUpdateDefinitions, map[string]string{"definitions_json": defs})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "updated successfully")

	got, err := h.Execute(OpGetDefinitions, nil)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got.Data, &decoded))
	assert.Contains(t, decoded, "plans")

	t.Run("invalid json rejected", func(t *testing.T) {
		_, err := h.Execute(OpUpdateDefinitions, map[string]string{"definitions_json": "{broken"})
		assert.Error(t, err)
	})

	t.Run("tampered file detected", func(t *testing.T) {
		require.NoError(t, os.WriteFile(cfg.DefinitionsFile, []byte(`{"plans":{}}`), 0o644))
		_, err := h.Execute(OpGetDefinitions, nil)
		assert.ErrorContains(t, err, "checksum mismatch")
	})
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("get_license_plan")
	require.NoError(t, err)
	assert.Equal(t, OpGetPlan, op)

	_, err = ParseOperation("frobnicate")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}
