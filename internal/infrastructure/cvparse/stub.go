package cvparse

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/imports"
)

// Ensure StubParser implements the Parser port
var _ imports.Parser = (*StubParser)(nil)

// StubParser derives a name from the uploaded filename instead of calling a
// parsing service. Use it for local development when no service is configured.
type StubParser struct{}

// NewStubParser creates a StubParser
func NewStubParser() *StubParser {
	return &StubParser{}
}

// Parse reads "john_doe.pdf" as first name John, last name Doe. Files whose
// names carry fewer than two words come back nameless, which the import
// pipeline records as a parse failure.
func (s *StubParser) Parse(ctx context.Context, filePath, originalFilename string) (imports.ParsedCV, error) {
	if _, err := os.Stat(filePath); err != nil {
		return imports.ParsedCV{}, imports.Terminal("uploaded file is no longer available", err)
	}

	base := strings.TrimSuffix(originalFilename, filepath.Ext(originalFilename))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})

	var result imports.ParsedCV
	if len(words) >= 2 {
		result.FirstName = contact.NormalizeName(words[0])
		result.LastName = contact.NormalizeName(words[len(words)-1])
	}
	return result, nil
}
