package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/urlic/licenced/internal/config"
	"github.com/urlic/licenced/internal/log"
)

// dateLayout is the expiry format carried in license documents.
const dateLayout = "2006-01-02"

// Handler executes domain operations against a fixed configuration snapshot.
// The snapshot is copied at construction and never mutated afterwards, so a
// single Handler is safe for concurrent use by many workers.
type Handler struct {
	cfg    config.LicenseConfig
	logger *slog.Logger
}

// NewHandler creates a Handler bound to the given license configuration.
func NewHandler(cfg config.LicenseConfig) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: log.WithComponent("license"),
	}
}

// Execute runs one operation. Operations that produce structured output
// return it directly in Result.Data; there is no shared output channel.
func (h *Handler) Execute(op Operation, params map[string]string) (Result, error) {
	switch op {
	case OpVerify:
		return h.verify(params)
	case OpUpdate:
		return h.update(params)
	case OpGenerate:
		return h.generate(params)
	case OpGetInfo:
		return h.getInfo()
	case OpGetPlan:
		return h.getPlan()
	case OpGetDefinitions:
		return h.getDefinitions()
	case OpUpdateDefinitions:
		return h.updateDefinitions(params)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
}

// licensePath is the fixed on-disk location; caller-supplied paths are never
// honored.
func (h *Handler) licensePath() string {
	return filepath.Join(h.cfg.LicensesDir, LicenseFileName)
}

func (h *Handler) verify(params map[string]string) (Result, error) {
	lic, err := loadLicense(h.licensePath())
	if err != nil {
		return Result{}, fmt.Errorf("license is INVALID: %w", err)
	}

	checkExpiry := true
	if v, ok := params["check_expiry"]; ok {
		checkExpiry = v == "true"
	}

	if err := h.checkKnownPlan(lic); err != nil {
		return Result{}, err
	}

	if checkExpiry {
		expiry, err := time.Parse(dateLayout, lic.ValidUntil)
		if err != nil {
			return Result{}, fmt.Errorf("license is INVALID: bad expiry date %q", lic.ValidUntil)
		}
		if time.Now().After(expiry.Add(24 * time.Hour)) {
			return Result{}, fmt.Errorf("license is INVALID: expired on %s", lic.ValidUntil)
		}
	}

	out, err := json.Marshal(map[string]any{
		"valid":   true,
		"user":    lic.UserName,
		"email":   lic.UserEmail,
		"expires": lic.ValidUntil,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal verify result: %w", err)
	}
	return Result{Data: out, Message: "License is VALID"}, nil
}

// checkKnownPlan validates the license type against the definitions document.
// A missing definitions file skips the check; definitions are optional until
// provisioned.
func (h *Handler) checkKnownPlan(lic *License) error {
	data, err := readVerified(h.cfg.DefinitionsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("license is INVALID: %w", err)
	}

	var defs struct {
		Plans map[string]json.RawMessage `json:"plans"`
	}
	if err := json.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("license is INVALID: definitions file is not valid JSON: %w", err)
	}
	if len(defs.Plans) == 0 {
		// Document carries no plan table; nothing to check against.
		return nil
	}
	if _, ok := defs.Plans[lic.LicenceType]; !ok {
		return fmt.Errorf("license is INVALID: unknown license type %q", lic.LicenceType)
	}
	return nil
}

func (h *Handler) getInfo() (Result, error) {
	data, err := readVerified(h.licensePath())
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract license information: %w", err)
	}

	// Round-trip to drop unknown fields and normalize shape.
	var lic License
	if err := json.Unmarshal(data, &lic); err != nil {
		return Result{}, fmt.Errorf("license file is not valid JSON: %w", err)
	}

	out, err := json.Marshal(lic)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal license info: %w", err)
	}
	return Result{Data: out}, nil
}

func (h *Handler) getPlan() (Result, error) {
	lic, err := loadLicense(h.licensePath())
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract license plan information: %w", err)
	}

	plan := map[string]string{
		"license_type": orUnknown(lic.LicenceType),
		"license_tier": orUnknown(lic.LicenseTier),
		"product":      orUnknown(lic.Product),
		"version":      orUnknown(lic.Version),
		"expiry":       orUnknown(lic.ValidUntil),
	}

	out, err := json.Marshal(plan)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal license plan: %w", err)
	}
	return Result{Data: out}, nil
}

func (h *Handler) getDefinitions() (Result, error) {
	data, err := readVerified(h.cfg.DefinitionsFile)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load license definitions: %w", err)
	}
	if !json.Valid(data) {
		return Result{}, fmt.Errorf("license definitions file is not valid JSON")
	}
	return Result{Data: data}, nil
}

func (h *Handler) updateDefinitions(params map[string]string) (Result, error) {
	content, ok := params["definitions_json"]
	if !ok || content == "" {
		return Result{}, fmt.Errorf("no definitions content provided for update")
	}

	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Result{}, fmt.Errorf("invalid JSON provided for definitions update: %w", err)
	}

	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal definitions: %w", err)
	}

	if err := writeVerified(h.cfg.DefinitionsFile, pretty); err != nil {
		return Result{}, err
	}

	h.logger.Info("license definitions updated", "path", h.cfg.DefinitionsFile)
	return Result{Message: fmt.Sprintf("License definitions updated successfully: %s", h.cfg.DefinitionsFile)}, nil
}

func (h *Handler) update(params map[string]string) (Result, error) {
	path := h.licensePath()
	lic, err := loadLicense(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to update license: %w", err)
	}

	if newExpiry, ok := params["new_expiry"]; ok && newExpiry != "" {
		if _, err := time.Parse(dateLayout, newExpiry); err != nil {
			return Result{}, fmt.Errorf("invalid new_expiry %q: %w", newExpiry, err)
		}
		lic.ValidUntil = newExpiry
	}

	for key, value := range params {
		switch key {
		case "new_expiry", "check_expiry":
			// Handled above / verify-only.
		case "user_name":
			lic.UserName = value
		case "user_email":
			lic.UserEmail = value
		case "licence_type":
			lic.LicenceType = value
		case "license_tier":
			lic.LicenseTier = value
		case "product":
			lic.Product = value
		case "version":
			lic.Version = value
		}
	}

	if err := storeLicense(path, lic); err != nil {
		return Result{}, fmt.Errorf("failed to update license: %w", err)
	}

	h.logger.Info("license updated", "path", path)
	return Result{Message: fmt.Sprintf("License updated successfully: %s", path)}, nil
}

func (h *Handler) generate(params map[string]string) (Result, error) {
	userName := params["user_name"]
	userEmail := params["user_email"]
	if userName == "" || userEmail == "" {
		return Result{}, fmt.Errorf("user_name and user_email are required to generate a license")
	}

	validUntil := params["valid_until"]
	if validUntil == "" {
		validUntil = time.Now().AddDate(1, 0, 0).Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, validUntil); err != nil {
		return Result{}, fmt.Errorf("invalid valid_until %q: %w", validUntil, err)
	}

	licenceType := params["licence_type"]
	if licenceType == "" {
		licenceType = "standard"
	}

	lic := &License{
		LicenseID:   uuid.NewString(),
		UserName:    userName,
		UserEmail:   userEmail,
		LicenceType: licenceType,
		LicenseTier: params["license_tier"],
		Product:     params["product"],
		Version:     params["version"],
		IssuedAt:    time.Now().UTC().Format(dateLayout),
		ValidUntil:  validUntil,
	}

	path := h.licensePath()
	if err := os.MkdirAll(h.cfg.LicensesDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create licenses directory: %w", err)
	}
	if err := storeLicense(path, lic); err != nil {
		return Result{}, fmt.Errorf("failed to generate license: %w", err)
	}

	out, err := json.Marshal(lic)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal generated license: %w", err)
	}

	h.logger.Info("license generated", "license_id", lic.LicenseID, "path", path)
	return Result{Data: out, Message: fmt.Sprintf("License generated successfully: %s", path)}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
