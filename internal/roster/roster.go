// Package roster loads the fixed company universe the scanner works through.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
)

// Load reads the roster CSV at path. The file needs a header row with "cik"
// and optionally "name" columns (any casing). CIKs are normalized to the
// canonical 10-digit zero-padded form; duplicates keep their first position.
func Load(path string) ([]model.Company, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer f.Close()
	companies, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return companies, nil
}

// Parse reads roster rows from r.
func Parse(r io.Reader) ([]model.Company, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cikCol, nameCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "cik":
			cikCol = i
		case "name":
			nameCol = i
		}
	}
	if cikCol < 0 {
		return nil, fmt.Errorf("no cik column in header %v", header)
	}

	seen := make(map[string]struct{})
	var companies []model.Company
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if cikCol >= len(row) {
			continue
		}
		cik, ok := NormalizeCIK(row[cikCol])
		if !ok {
			continue
		}
		if _, dup := seen[cik]; dup {
			continue
		}
		seen[cik] = struct{}{}
		name := ""
		if nameCol >= 0 && nameCol < len(row) {
			name = strings.TrimSpace(row[nameCol])
		}
		companies = append(companies, model.Company{CIK: cik, Name: name})
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("roster holds no usable cik rows")
	}
	return companies, nil
}

// NormalizeCIK strips non-digits and zero-pads to 10 characters. It returns
// false for values without digits or with more than 10 of them.
func NormalizeCIK(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > 10 {
		return "", false
	}
	return strings.Repeat("0", 10-len(digits)) + digits, true
}
