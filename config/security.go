package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Security limits for configuration and registry files
	maxConfigSize = 10 << 20 // 10MB max file size
	maxJSONDepth  = 100      // Maximum JSON nesting depth
	maxPathLen    = 4096     // Maximum file path length
)

// validatePath does basic path validation
func validatePath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	// Prevent parent-reference escapes after normalization
	if strings.Contains(filepath.ToSlash(absPath), "..") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}

	switch filepath.Ext(path) {
	case ".json", ".yaml", ".yml", ".sparql", ".rq":
	default:
		return fmt.Errorf("unsupported file extension: %s", path)
	}

	return nil
}

// SafeReadFile reads a config or registry file with security validation.
// It rejects oversized files, irregular files, and suspicious paths.
func SafeReadFile(path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}

	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	return data, nil
}

// ValidateJSONDepth rejects JSON documents nested deeper than maxJSONDepth
// to prevent resource exhaustion from crafted registry files.
func ValidateJSONDepth(data []byte) error {
	var depth, maxSeen int
	dec := json.NewDecoder(strings.NewReader(string(data)))

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
				if depth > maxSeen {
					maxSeen = depth
				}
			case '}', ']':
				depth--
			}
		}

		if maxSeen > maxJSONDepth {
			return fmt.Errorf("JSON nesting too deep: %d > %d", maxSeen, maxJSONDepth)
		}
	}

	return nil
}
