// api/handlers/contact_handlers.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nottinghamcompanions/website-api/models"
	"github.com/nottinghamcompanions/website-api/store"
)

const inquiryListLimit = 100

// InquiryStore is the persistence surface of the contact pipeline.
type InquiryStore interface {
	Create(ctx context.Context, inq *models.Inquiry) error
	List(ctx context.Context, limit int) ([]models.Inquiry, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// InquiryNotifier sends the "new inquiry" email to the site owner.
type InquiryNotifier interface {
	SendInquiryNotification(inq models.Inquiry) error
}

type ContactHandlers struct {
	Inquiries InquiryStore
	Notifier  InquiryNotifier // nil when email is not configured
}

func NewContactHandlers(inquiries InquiryStore, notifier InquiryNotifier) *ContactHandlers {
	return &ContactHandlers{
		Inquiries: inquiries,
		Notifier:  notifier,
	}
}

// Submit handles POST /api/contact.
func (h *ContactHandlers) Submit(c *gin.Context) {
	var req models.InquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding contact inquiry JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Missing or invalid fields",
			"required": []string{"name", "email", "phone", "serviceType", "message", "location"},
		})
		return
	}

	inquiry := models.Inquiry{
		ID:                  uuid.New().String(),
		Name:                strings.TrimSpace(req.Name),
		Email:               strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:               strings.TrimSpace(req.Phone),
		ServiceType:         req.ServiceType,
		Message:             strings.TrimSpace(req.Message),
		PreferredDate:       req.PreferredDate,
		PreferredTime:       req.PreferredTime,
		Duration:            req.Duration,
		Location:            strings.TrimSpace(req.Location),
		Budget:              req.Budget,
		SpecialRequirements: req.SpecialRequirements,
		UTMSource:           req.UTMSource,
		UTMMedium:           req.UTMMedium,
		UTMCampaign:         req.UTMCampaign,
		Status:              "new",
		Source:              "website",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Inquiries.Create(ctx, &inquiry); err != nil {
		log.Printf("Error saving inquiry from %s: %v", inquiry.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit inquiry. Please try again later."})
		return
	}

	log.Printf("New companion inquiry saved: %s from %s", inquiry.ID, inquiry.Email)

	// Notification is best effort; the inquiry is already persisted.
	if h.Notifier != nil {
		if err := h.Notifier.SendInquiryNotification(inquiry); err != nil {
			log.Printf("Error sending inquiry notification email for %s: %v", inquiry.ID, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Your inquiry has been submitted successfully! I'll get back to you within 24 hours.",
		"inquiryId": inquiry.ID,
		"status":    inquiry.Status,
	})
}

// List handles GET /api/admin/inquiries.
func (h *ContactHandlers) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	inquiries, err := h.Inquiries.List(ctx, inquiryListLimit)
	if err != nil {
		log.Printf("Error listing inquiries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load inquiries"})
		return
	}
	if inquiries == nil {
		inquiries = []models.Inquiry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inquiries": inquiries,
		"total":     len(inquiries),
	})
}

// UpdateStatus handles PATCH /api/admin/inquiries/:id/status.
func (h *ContactHandlers) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req models.UpdateInquiryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Invalid status",
			"statuses": models.InquiryStatuses,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Inquiries.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, store.ErrInquiryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		log.Printf("Error updating inquiry %q status: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inquiry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "inquiryId": id, "status": req.Status})
}

// Delete handles DELETE /api/admin/inquiries/:id.
func (h *ContactHandlers) Delete(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Inquiries.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrInquiryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		log.Printf("Error deleting inquiry %q: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete inquiry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
