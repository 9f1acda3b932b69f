package domain

import (
	"time"

	"github.com/lib/pq"
)

// Client is the business account that owns content and carries the monthly
// posting quota. Content holds a client_id back-reference only; the client is
// always loaded separately so the two aggregates never own each other.
type Client struct {
	ID           string `db:"id"            json:"id"`
	BusinessName string `db:"business_name" json:"business_name"`
	Industry     string `db:"industry"      json:"industry,omitempty"`
	WebsiteURL   string `db:"website_url"   json:"website_url,omitempty"`

	City        string `db:"city"         json:"city,omitempty"`
	State       string `db:"state"        json:"state,omitempty"`
	ServiceArea string `db:"service_area" json:"service_area,omitempty"`

	// Quota: posts_this_month is only ever incremented through the quota
	// gate's conditional update and zeroed by the monthly reset job.
	MonthlyPostLimit int `db:"monthly_post_limit" json:"monthly_post_limit"`
	PostsThisMonth   int `db:"posts_this_month"   json:"posts_this_month"`

	AutoPost       bool   `db:"auto_post"       json:"auto_post"`
	BrandVoice     string `db:"brand_voice"     json:"brand_voice,omitempty"`
	TonePreference string `db:"tone_preference" json:"tone_preference,omitempty"`

	// PlatformsEnabled is the set of platforms the client may target;
	// AccountRefs maps platform -> pre-validated external account reference.
	PlatformsEnabled pq.StringArray `db:"platforms_enabled" json:"platforms_enabled"`
	AccountRefs      StringMap      `db:"account_refs"      json:"account_refs,omitempty"`

	OwnerEmail string `db:"owner_email" json:"owner_email,omitempty"`
	IsActive   bool   `db:"is_active"   json:"is_active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PostsRemaining returns how many posts the client can still start this month.
func (c *Client) PostsRemaining() int {
	remaining := c.MonthlyPostLimit - c.PostsThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasPlatform reports whether a platform is enabled for this client.
func (c *Client) HasPlatform(platform string) bool {
	for _, p := range c.PlatformsEnabled {
		if p == platform {
			return true
		}
	}
	return false
}

// Location returns the best available locality string for prompt context.
func (c *Client) Location() string {
	if c.ServiceArea != "" {
		return c.ServiceArea
	}
	if c.City != "" && c.State != "" {
		return c.City + ", " + c.State
	}
	return c.City
}
