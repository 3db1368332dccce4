package license

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// checksumSuffix names the integrity sidecar written next to license
// material. Checksums protect against on-disk corruption and out-of-band
// edits; they are not a cryptographic signature.
const checksumSuffix = ".b3"

func readVerified(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	sidecar, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			// Unlocked file; integrity is opt-in.
			return data, nil
		}
		return nil, fmt.Errorf("failed to read checksum for %s: %w", filepath.Base(path), err)
	}

	sum := blake3.Sum256(data)
	if hex.EncodeToString(sum[:]) != string(sidecar) {
		return nil, fmt.Errorf("checksum mismatch for %s", filepath.Base(path))
	}
	return data, nil
}

func writeVerified(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	sum := blake3.Sum256(data)
	if err := os.WriteFile(path+checksumSuffix, []byte(hex.EncodeToString(sum[:])), 0o644); err != nil {
		return fmt.Errorf("failed to write checksum for %s: %w", filepath.Base(path), err)
	}
	return nil
}

func loadLicense(path string) (*License, error) {
	data, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	var lic License
	if err := json.Unmarshal(data, &lic); err != nil {
		return nil, fmt.Errorf("license file is not valid JSON: %w", err)
	}
	return &lic, nil
}

func storeLicense(path string, lic *License) error {
	data, err := json.MarshalIndent(lic, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal license: %w", err)
	}
	return writeVerified(path, data)
}
