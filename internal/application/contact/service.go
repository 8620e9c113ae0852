package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentStorage issues short-lived download links for stored CV files
type DocumentStorage interface {
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// downloadURLTTL matches the presign window of the storage layer
const downloadURLTTL = 15 * time.Minute

// listCacheTTL bounds how stale a cached contact page can get. CV
// imports create contacts outside this service, so the window stays
// short.
const listCacheTTL = 30 * time.Second

// Service handles contact CRUD inside the caller's tenant. Every method
// requires a tenancy in the context; the repositories refuse to run
// without one.
type Service struct {
	contacts  contact.Repository
	documents contact.DocumentRepository
	storage   DocumentStorage
	listCache cache.TenantCache
	logger    *zap.Logger
}

// ServiceOption configures optional Service collaborators
type ServiceOption func(*Service)

// WithListCache caches contact list pages in the tenant's cache
// namespace. Mutations through the service flush the namespace.
func WithListCache(c cache.TenantCache) ServiceOption {
	return func(s *Service) {
		s.listCache = c
	}
}

// NewService creates a contact service
func NewService(contacts contact.Repository, documents contact.DocumentRepository, storage DocumentStorage, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		contacts:  contacts,
		documents: documents,
		storage:   storage,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a contact for the active tenant
func (s *Service) Create(ctx context.Context, req CreateContactRequest) (*ContactResponse, error) {
	tc, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoTenantAssociation
	}

	c, err := contact.New(tc.ID, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	if err := applyCreate(c, req); err != nil {
		return nil, err
	}

	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}
	s.flushListCache(ctx)
	s.logger.Info("contact created",
		zap.String("tenant", tc.Slug),
		zap.String("contact_uid", c.UID.String()))

	resp := ToContactResponse(c)
	return &resp, nil
}

// GetByUID retrieves one contact
func (s *Service) GetByUID(ctx context.Context, uid uuid.UUID) (*ContactResponse, error) {
	c, err := s.contacts.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	resp := ToContactResponse(c)
	return &resp, nil
}

// List retrieves a page of contacts
func (s *Service) List(ctx context.Context, filter ListFilter) (*shared.Paginated[ContactResponse], error) {
	domainFilter := contact.Filter{
		Filter:      shared.DefaultFilter(),
		NetworkRole: contact.NetworkRole(filter.NetworkRole),
	}
	domainFilter.Search = filter.Search
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}

	key := listCacheKey(domainFilter)
	if s.listCache != nil {
		if raw, ok, err := s.listCache.Get(ctx, key); err != nil {
			s.logger.Warn("contact list cache read failed", zap.Error(err))
		} else if ok {
			var cached shared.Paginated[ContactResponse]
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	contacts, total, err := s.contacts.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToContactResponses(contacts), total, domainFilter.Page, domainFilter.PageSize)

	if s.listCache != nil {
		if raw, err := json.Marshal(page); err == nil {
			if err := s.listCache.Set(ctx, key, string(raw), listCacheTTL); err != nil {
				s.logger.Warn("contact list cache write failed", zap.Error(err))
			}
		}
	}
	return &page, nil
}

func listCacheKey(f contact.Filter) string {
	return fmt.Sprintf("contacts:list:%s|%s|%d|%d|%s|%s",
		f.Search, f.NetworkRole, f.Page, f.PageSize, f.OrderBy, f.OrderDir)
}

// flushListCache drops the tenant's cache namespace; it holds only
// contact list pages.
func (s *Service) flushListCache(ctx context.Context) {
	if s.listCache == nil {
		return
	}
	if err := s.listCache.Flush(ctx); err != nil {
		s.logger.Warn("contact list cache flush failed", zap.Error(err))
	}
}

// Update applies a partial update to a contact
func (s *Service) Update(ctx context.Context, uid uuid.UUID, req UpdateContactRequest) (*ContactResponse, error) {
	c, err := s.contacts.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(c, req); err != nil {
		return nil, err
	}
	c.IncrementVersion()

	if err := s.contacts.Update(ctx, c); err != nil {
		return nil, err
	}
	s.flushListCache(ctx)
	resp := ToContactResponse(c)
	return &resp, nil
}

// Delete soft-deletes a contact; its documents stay for audit
func (s *Service) Delete(ctx context.Context, uid uuid.UUID) error {
	c, err := s.contacts.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.contacts.SoftDelete(ctx, c.ID); err != nil {
		return err
	}
	s.flushListCache(ctx)
	return nil
}

// ListDocuments returns a contact's documents, each with a short-lived
// download link. A document whose link cannot be generated is returned
// without one rather than failing the listing.
func (s *Service) ListDocuments(ctx context.Context, contactUID uuid.UUID) ([]DocumentResponse, error) {
	c, err := s.contacts.FindByUID(ctx, contactUID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.FindByContact(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	out := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		resp := DocumentResponse{
			ID:               d.ID,
			Type:             string(d.Type),
			OriginalFilename: d.OriginalFilename,
			MimeType:         d.MimeType,
			FileSize:         d.FileSize,
			CreatedAt:        d.CreatedAt,
		}
		url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, d.StoragePath, downloadURLTTL)
		if err != nil {
			s.logger.Warn("failed to generate document download url",
				zap.String("document_id", d.ID.String()), zap.Error(err))
		} else {
			resp.DownloadURL = url
			formatted := expiresAt.UTC().Format(time.RFC3339)
			resp.ExpiresAt = &formatted
		}
		out = append(out, resp)
	}
	return out, nil
}

func applyCreate(c *contact.Contact, req CreateContactRequest) error {
	c.Prefix = req.Prefix
	c.Email = req.Email
	c.Phone = req.Phone
	c.Location = req.Location
	c.Education = req.Education
	c.CurrentCompany = req.CurrentCompany
	c.CompanyRole = req.CompanyRole
	c.LinkedInURL = req.LinkedInURL
	c.Notes = req.Notes
	if req.CurrentSalary != nil {
		c.CurrentSalary = *req.CurrentSalary
	}
	for _, role := range req.NetworkRoles {
		c.AddNetworkRole(contact.NetworkRole(role))
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			return shared.NewDomainError("INVALID_DATE", "Date of birth must be YYYY-MM-DD")
		}
		c.DateOfBirth = &dob
	}
	return nil
}

func applyUpdate(c *contact.Contact, req UpdateContactRequest) error {
	if req.FirstName != nil {
		c.FirstName = *req.FirstName
	}
	if req.Prefix != nil {
		c.Prefix = *req.Prefix
	}
	if req.LastName != nil {
		c.LastName = *req.LastName
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Location != nil {
		c.Location = *req.Location
	}
	if req.Education != nil {
		c.Education = *req.Education
	}
	if req.CurrentCompany != nil {
		c.CurrentCompany = *req.CurrentCompany
	}
	if req.CompanyRole != nil {
		c.CompanyRole = *req.CompanyRole
	}
	if req.LinkedInURL != nil {
		c.LinkedInURL = *req.LinkedInURL
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	if req.CurrentSalary != nil {
		c.CurrentSalary = *req.CurrentSalary
	}
	if req.NetworkRoles != nil {
		c.NetworkRoles = contact.RoleList{}
		for _, role := range req.NetworkRoles {
			c.AddNetworkRole(contact.NetworkRole(role))
		}
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			return shared.NewDomainError("INVALID_DATE", "Date of birth must be YYYY-MM-DD")
		}
		c.DateOfBirth = &dob
	}
	return nil
}
