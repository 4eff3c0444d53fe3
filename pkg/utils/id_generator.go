package utils

import (
	"github.com/google/uuid"
)

// GenerateID generates a new UUID, used for correlation IDs
func GenerateID() string {
	return uuid.New().String()
}

// GenerateConsentID generates a unique consent record ID
func GenerateConsentID() string {
	return "CONSENT-" + uuid.New().String()
}

// GenerateAuditID generates a unique status audit ID
func GenerateAuditID() string {
	return "AUDIT-" + uuid.New().String()
}
