package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// checksumManifest is the filename of the integrity manifest written by
// "licenced config lock", stored next to the config file.
const checksumManifest = ".checksums"

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// WriteConfigHash records the current BLAKE3 hash of the config file in the
// .checksums manifest next to it, authorizing the current state.
func WriteConfigHash(configPath string) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	hash, err := ComputeBlake3Hash(absPath)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(filepath.Dir(absPath), checksumManifest)
	line := fmt.Sprintf("%s  %s\n", hash, filepath.Base(absPath))
	if err := os.WriteFile(manifestPath, []byte(line), 0o644); err != nil {
		return fmt.Errorf("failed to write checksum manifest: %w", err)
	}
	return nil
}

// VerifyConfigHash checks the config file against the .checksums manifest if
// one exists. A missing manifest is not an error; integrity verification is
// opt-in via "licenced config lock".
func VerifyConfigHash(configPath string) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	manifestPath := filepath.Join(filepath.Dir(absPath), checksumManifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checksum manifest: %w", err)
	}

	base := filepath.Base(absPath)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] != base {
			continue
		}
		if err := VerifyFileHash(absPath, fields[0]); err != nil {
			return fmt.Errorf("config integrity check failed: %w (run 'licenced config lock' to authorize changes)", err)
		}
		return nil
	}

	// Manifest exists but does not cover this file.
	return fmt.Errorf("config file %s not in %s manifest; run 'licenced config lock'", base, checksumManifest)
}
