package dpkg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/nvidia-update-guard/internal/domain/inventory"
	"github.com/oshokin/nvidia-update-guard/internal/logger"
	"github.com/oshokin/nvidia-update-guard/internal/process"
)

// ErrMalformedOutput is returned when dpkg-query prints something that is not UTF-8 text.
var ErrMalformedOutput = errors.New("dpkg-query output is not valid UTF-8")

// minimumFields is status, name and version.
const minimumFields = 3

// Repository lists installed packages matching the configured pattern.
type Repository interface {
	List(ctx context.Context) (inventory.Inventory, error)
}

// Reader is the dpkg-query backed Repository.
type Reader struct {
	// runner executes dpkg-query.
	runner process.Runner
	// path is the absolute location of dpkg-query.
	path string
	// pattern is the package glob handed to dpkg-query.
	pattern string
	// statuses holds the accepted status codes.
	statuses map[string]struct{}
}

// NewReader creates a Reader. statuses are the dpkg status codes counted as installed.
func NewReader(runner process.Runner, path, pattern string, statuses []string) *Reader {
	accepted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		accepted[strings.TrimSpace(status)] = struct{}{}
	}

	return &Reader{
		runner:   runner,
		path:     path,
		pattern:  pattern,
		statuses: accepted,
	}
}

// List returns a fresh snapshot of matching installed packages.
// A pattern that matches nothing yields an empty inventory only when dpkg-query exits zero.
func (r *Reader) List(ctx context.Context) (inventory.Inventory, error) {
	output, err := r.runner.Output(ctx, r.path, "--list", r.pattern)
	if err != nil {
		return nil, fmt.Errorf("query installed packages: %w", err)
	}

	result, err := Parse(output, r.statuses)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Installed packages", "pattern", r.pattern, "count", len(result))

	return result, nil
}

// Parse extracts name/version pairs from `dpkg-query --list` output.
// Header, footer and short lines as well as rows with other status codes are skipped.
func Parse(output []byte, statuses map[string]struct{}) (inventory.Inventory, error) {
	if !utf8.Valid(output) {
		return nil, ErrMalformedOutput
	}

	result := make(inventory.Inventory)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(output)+1)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < minimumFields {
			continue
		}

		if _, ok := statuses[fields[0]]; !ok {
			continue
		}

		result[fields[1]] = fields[2]
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dpkg-query output: %w", err)
	}

	return result, nil
}
