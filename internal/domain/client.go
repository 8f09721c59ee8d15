package domain

import (
	"context"
	"strings"
	"time"
)

// Role constants
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Client is the customer account that owns payments and invoices
type Client struct {
	ID          string    `bson:"_id" json:"id"`
	FirebaseUID string    `bson:"firebase_uid,omitempty" json:"firebase_uid,omitempty"`
	Name        string    `bson:"name" json:"name"`
	CompanyName string    `bson:"company_name,omitempty" json:"company_name,omitempty"`
	Email       string    `bson:"email" json:"email"`
	Phone       string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Role        string    `bson:"role" json:"role"`
	SMSOptIn    bool      `bson:"sms_opt_in" json:"sms_opt_in"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName prefers the company name for invoices and reports
func (c *Client) DisplayName() string {
	if strings.TrimSpace(c.CompanyName) != "" {
		return c.CompanyName
	}
	return c.Name
}

// WantsSMS reports whether SMS notifications can be sent to this client
func (c *Client) WantsSMS() bool {
	return c.SMSOptIn && strings.TrimSpace(c.Phone) != ""
}

// Caller is the authenticated principal making a request
type Caller struct {
	ID   string
	Role string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// AuthorizeOwner allows admins and the owning client only
func AuthorizeOwner(caller Caller, ownerID string) error {
	if caller.IsAdmin() || (caller.ID != "" && caller.ID == ownerID) {
		return nil
	}
	return NewForbiddenError("you do not have access to this payment")
}

// ClientRepository defines operations for client accounts
type ClientRepository interface {
	Create(ctx context.Context, client *Client) error
	GetByID(ctx context.Context, id string) (*Client, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*Client, error)
	GetByEmail(ctx context.Context, email string) (*Client, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*Client, error)
	Update(ctx context.Context, client *Client) error
}
