package imports

import (
	"context"
	"time"
)

// ParsedCV is the structured result of parsing one CV document
type ParsedCV struct {
	FirstName      string     `json:"first_name"`
	Prefix         string     `json:"prefix"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Location       string     `json:"location"`
	Education      string     `json:"education"`
	CurrentCompany string     `json:"current_company"`
	CurrentRole    string     `json:"current_role"`
	Skills         string     `json:"skills"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
}

// HasName reports whether the parser extracted enough to identify a
// person; a nameless result is treated as a parse failure.
func (p ParsedCV) HasName() bool {
	return p.FirstName != "" && p.LastName != ""
}

// Parser extracts structured contact data from a CV file on disk.
// Transport failures and malformed responses are retryable; a parser that
// answered but could not find a name is reported via HasName.
type Parser interface {
	Parse(ctx context.Context, filePath, originalFilename string) (ParsedCV, error)
}
