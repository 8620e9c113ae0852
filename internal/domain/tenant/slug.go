package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crm/backend/internal/domain/shared"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedHyphen = regexp.MustCompile(`-+`)
)

// IsValidSlug reports whether s is a well-formed routing slug.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Slugify normalizes an arbitrary string into slug form: lower-case,
// non [a-z0-9-] runs replaced with a hyphen, repeated hyphens collapsed,
// edge hyphens trimmed. An input that normalizes to nothing yields
// "tenant".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = repeatedHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "tenant"
	}
	return s
}

// maxSlugAttempts bounds the suffix search; directory sizes are far below
// this in practice.
const maxSlugAttempts = 10000

// UniqueSlug derives an unused slug from base by appending -1, -2, ...
// until the directory reports it free. The existence check alone is racy
// between two simultaneous registrations; callers must rely on the
// landlord store's unique index and retry through CreateUnique.
func UniqueSlug(ctx context.Context, repo Repository, base string) (string, error) {
	slug := Slugify(base)
	try := slug
	for i := 1; i <= maxSlugAttempts; i++ {
		exists, err := repo.SlugExists(ctx, try)
		if err != nil {
			return "", err
		}
		if !exists {
			return try, nil
		}
		try = fmt.Sprintf("%s-%d", slug, i)
	}
	return "", shared.NewDomainError("SLUG_EXHAUSTED", "Could not derive a unique tenant slug")
}

// CreateUnique creates a tenant named name under a slug derived from base,
// retrying with the next available suffix whenever the insert loses a
// uniqueness race. The storage-layer unique index is the authority; the
// pre-check only keeps the common path to a single attempt.
func CreateUnique(ctx context.Context, repo Repository, name, base string) (*Tenant, error) {
	const insertRetries = 5
	for attempt := 0; attempt < insertRetries; attempt++ {
		slug, err := UniqueSlug(ctx, repo, base)
		if err != nil {
			return nil, err
		}
		t, err := New(name, slug)
		if err != nil {
			return nil, err
		}
		err = repo.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
	}
	return nil, shared.NewDomainError("SLUG_EXHAUSTED", "Could not derive a unique tenant slug")
}
