// Package email sends inquiry notifications through Resend.
package email

import (
	"fmt"
	"os"
	"strings"

	"github.com/resendlabs/resend-go"

	"github.com/nottinghamcompanions/website-api/models"
)

type Client struct {
	resend    *resend.Client
	fromEmail string
	fromName  string
	notifyTo  string
}

// NewClient builds a Resend-backed email client from the environment.
// RESEND_API_KEY and INQUIRY_NOTIFY_EMAIL are required.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	notifyTo := os.Getenv("INQUIRY_NOTIFY_EMAIL")
	if notifyTo == "" {
		return nil, fmt.Errorf("INQUIRY_NOTIFY_EMAIL environment variable is required")
	}

	fromEmail := os.Getenv("EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "noreply@nottinghamcompanions.co.uk"
	}

	fromName := os.Getenv("EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "Nottingham Companions"
	}

	return &Client{
		resend:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		notifyTo:  notifyTo,
	}, nil
}

// SendInquiryNotification emails the site owner about a new contact inquiry.
func (c *Client) SendInquiryNotification(inq models.Inquiry) error {
	subject := "New Companion Service Inquiry"
	content := inquiryEmailBody(inq)

	request := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{c.notifyTo},
		Subject: subject,
		Text:    content,
		Html:    strings.ReplaceAll(content, "\n", "<br>"),
	}

	_, err := c.resend.Emails.Send(request)
	if err != nil {
		return fmt.Errorf("failed to send inquiry notification: %w", err)
	}
	return nil
}

func inquiryEmailBody(inq models.Inquiry) string {
	orNotSpecified := func(s string) string {
		if s == "" {
			return "Not specified"
		}
		return s
	}
	orNotTracked := func(s string) string {
		if s == "" {
			return "Not tracked"
		}
		return s
	}

	preferredDate := "Not specified"
	if inq.PreferredDate != nil {
		preferredDate = inq.PreferredDate.Format("Monday, 2 January 2006")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New Companion Service Inquiry\n\n")
	fmt.Fprintf(&b, "Name: %s\n", inq.Name)
	fmt.Fprintf(&b, "Email: %s\n", inq.Email)
	fmt.Fprintf(&b, "Phone: %s\n", inq.Phone)
	fmt.Fprintf(&b, "Location: %s\n\n", inq.Location)
	fmt.Fprintf(&b, "Service Type: %s\n", inq.ServiceType)
	fmt.Fprintf(&b, "Duration: %s\n", orNotSpecified(inq.Duration))
	fmt.Fprintf(&b, "Preferred Date: %s\n", preferredDate)
	fmt.Fprintf(&b, "Preferred Time: %s\n\n", orNotSpecified(inq.PreferredTime))
	fmt.Fprintf(&b, "Message:\n%s\n\n", inq.Message)
	fmt.Fprintf(&b, "Additional Details:\n")
	fmt.Fprintf(&b, "- UTM Source: %s\n", orNotTracked(inq.UTMSource))
	fmt.Fprintf(&b, "- UTM Medium: %s\n", orNotTracked(inq.UTMMedium))
	fmt.Fprintf(&b, "- UTM Campaign: %s\n\n", orNotTracked(inq.UTMCampaign))
	fmt.Fprintf(&b, "Inquiry ID: %s\n", inq.ID)
	fmt.Fprintf(&b, "Status: %s\n", inq.Status)
	fmt.Fprintf(&b, "\n---\nThis inquiry was submitted through the website contact form.\n")
	return b.String()
}
