// api/models/inquiry.go
package models

import "time"

// Valid inquiry lifecycle states.
var InquiryStatuses = []string{"new", "contacted", "scheduled", "completed", "cancelled"}

// Inquiry is a contact-form submission from the website.
type Inquiry struct {
	ID                  string     `json:"inquiryId"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone"`
	ServiceType         string     `json:"serviceType"`
	Message             string     `json:"message"`
	PreferredDate       *time.Time `json:"preferredDate,omitempty"`
	PreferredTime       string     `json:"preferredTime,omitempty"`
	Duration            string     `json:"duration,omitempty"`
	Location            string     `json:"location"`
	Budget              string     `json:"budget,omitempty"`
	SpecialRequirements string     `json:"specialRequirements,omitempty"`
	UTMSource           string     `json:"utmSource,omitempty"`
	UTMMedium           string     `json:"utmMedium,omitempty"`
	UTMCampaign         string     `json:"utmCampaign,omitempty"`
	Status              string     `json:"status"`
	Source              string     `json:"source"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// InquiryRequest is the contact-form body. serviceType is constrained to the
// set of services offered on the site.
type InquiryRequest struct {
	Name                string     `json:"name" binding:"required"`
	Email               string     `json:"email" binding:"required,email"`
	Phone               string     `json:"phone" binding:"required"`
	ServiceType         string     `json:"serviceType" binding:"required,oneof=errands local-guidance life-admin companionship other"`
	Message             string     `json:"message" binding:"required"`
	PreferredDate       *time.Time `json:"preferredDate"`
	PreferredTime       string     `json:"preferredTime"`
	Duration            string     `json:"duration"`
	Location            string     `json:"location" binding:"required"`
	Budget              string     `json:"budget"`
	SpecialRequirements string     `json:"specialRequirements"`
	UTMSource           string     `json:"utmSource"`
	UTMMedium           string     `json:"utmMedium"`
	UTMCampaign         string     `json:"utmCampaign"`
}

// UpdateInquiryStatusRequest is the admin status-change body.
type UpdateInquiryStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=new contacted scheduled completed cancelled"`
}
