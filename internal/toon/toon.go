// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of validation findings.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/spinecheck/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeFindings renders a validation result in TOON format. Findings are
// written in the order given.
func EncodeFindings(root string, findings []model.Finding) string {
	var parts []string

	errs, warns := 0, 0
	for i := range findings {
		switch findings[i].Severity {
		case model.Error:
			errs++
		case model.Warning:
			warns++
		}
	}
	result := "pass"
	if errs > 0 {
		result = "fail"
	}

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(root)))
	parts = append(parts, fmt.Sprintf("result: %s", result))
	parts = append(parts, fmt.Sprintf("errors: %d", errs))
	parts = append(parts, fmt.Sprintf("warnings: %d", warns))

	var rows [][]string
	for i := range findings {
		f := &findings[i]
		rows = append(rows, []string{
			string(f.Severity),
			f.Code,
			f.Component,
			f.Path,
			fmt.Sprintf("%d", f.Line),
			f.Message,
		})
	}
	parts = append(parts, formatTabular("findings", []string{"severity", "code", "component", "path", "line", "message"}, rows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
