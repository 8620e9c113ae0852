package contact

import (
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateContactRequest represents a request to create a contact
type CreateContactRequest struct {
	FirstName      string           `json:"first_name" binding:"required,min=1,max=120"`
	Prefix         string           `json:"prefix" binding:"max=40"`
	LastName       string           `json:"last_name" binding:"required,min=1,max=120"`
	DateOfBirth    *string          `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Email          string           `json:"email" binding:"omitempty,email,max=255"`
	Phone          string           `json:"phone" binding:"max=50"`
	Location       string           `json:"location" binding:"max=255"`
	Education      string           `json:"education" binding:"omitempty,oneof=MBO HBO UNI"`
	CurrentCompany string           `json:"current_company" binding:"max=255"`
	CompanyRole    string           `json:"company_role" binding:"max=255"`
	NetworkRoles   []string         `json:"network_roles" binding:"omitempty,dive,oneof=candidate ambassador decision-maker freelancer"`
	CurrentSalary  *decimal.Decimal `json:"current_salary"`
	LinkedInURL    string           `json:"linkedin_url" binding:"omitempty,url,max=500"`
	Notes          string           `json:"notes"`
}

// UpdateContactRequest represents a partial contact update
type UpdateContactRequest struct {
	FirstName      *string          `json:"first_name" binding:"omitempty,min=1,max=120"`
	Prefix         *string          `json:"prefix" binding:"omitempty,max=40"`
	LastName       *string          `json:"last_name" binding:"omitempty,min=1,max=120"`
	DateOfBirth    *string          `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Email          *string          `json:"email" binding:"omitempty,email,max=255"`
	Phone          *string          `json:"phone" binding:"omitempty,max=50"`
	Location       *string          `json:"location" binding:"omitempty,max=255"`
	Education      *string          `json:"education" binding:"omitempty,oneof=MBO HBO UNI"`
	CurrentCompany *string          `json:"current_company" binding:"omitempty,max=255"`
	CompanyRole    *string          `json:"company_role" binding:"omitempty,max=255"`
	NetworkRoles   []string         `json:"network_roles" binding:"omitempty,dive,oneof=candidate ambassador decision-maker freelancer"`
	CurrentSalary  *decimal.Decimal `json:"current_salary"`
	LinkedInURL    *string          `json:"linkedin_url" binding:"omitempty,url,max=500"`
	Notes          *string          `json:"notes"`
}

// ListFilter represents query options for the contact listing
type ListFilter struct {
	Search      string `form:"search"`
	NetworkRole string `form:"network_role" binding:"omitempty,oneof=candidate ambassador decision-maker freelancer"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by" binding:"omitempty,oneof=created_at updated_at last_name first_name"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ContactResponse represents a contact in API responses. Internal row IDs
// never leave the service; clients address contacts by UID.
type ContactResponse struct {
	UID            uuid.UUID       `json:"uid"`
	FirstName      string          `json:"first_name"`
	Prefix         string          `json:"prefix,omitempty"`
	LastName       string          `json:"last_name"`
	DisplayName    string          `json:"display_name"`
	DateOfBirth    *string         `json:"date_of_birth,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Location       string          `json:"location,omitempty"`
	Education      string          `json:"education,omitempty"`
	CurrentCompany string          `json:"current_company,omitempty"`
	CompanyRole    string          `json:"company_role,omitempty"`
	NetworkRoles   []string        `json:"network_roles"`
	CurrentSalary  decimal.Decimal `json:"current_salary"`
	LinkedInURL    string          `json:"linkedin_url,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DocumentResponse represents a contact document with a short-lived
// download link
type DocumentResponse struct {
	ID               uuid.UUID `json:"id"`
	Type             string    `json:"type"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	FileSize         int64     `json:"file_size"`
	DownloadURL      string    `json:"download_url,omitempty"`
	ExpiresAt        *string   `json:"expires_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

const dateLayout = "2006-01-02"

// ToContactResponse maps a domain contact to its API shape
func ToContactResponse(c *contact.Contact) ContactResponse {
	resp := ContactResponse{
		UID:            c.UID,
		FirstName:      c.FirstName,
		Prefix:         c.Prefix,
		LastName:       c.LastName,
		DisplayName:    c.DisplayName(),
		Email:          c.Email,
		Phone:          c.Phone,
		Location:       c.Location,
		Education:      c.Education,
		CurrentCompany: c.CurrentCompany,
		CompanyRole:    c.CompanyRole,
		NetworkRoles:   c.NetworkRoles,
		CurrentSalary:  c.CurrentSalary,
		LinkedInURL:    c.LinkedInURL,
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if resp.NetworkRoles == nil {
		resp.NetworkRoles = []string{}
	}
	if c.DateOfBirth != nil {
		dob := c.DateOfBirth.Format(dateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

// ToContactResponses maps a listing page
func ToContactResponses(contacts []contact.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for i := range contacts {
		out = append(out, ToContactResponse(&contacts[i]))
	}
	return out
}
