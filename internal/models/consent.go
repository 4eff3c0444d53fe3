package models

// ConsentStatus is the lifecycle state of a consent record
type ConsentStatus string

// Consent record statuses. The only allowed transition is granted to revoked.
const (
	ConsentStatusGranted ConsentStatus = "granted"
	ConsentStatusRevoked ConsentStatus = "revoked"
)

// ConsentRecord represents the CONSENT_LEDGER table
type ConsentRecord struct {
	ConsentID         string        `db:"CONSENT_ID" json:"consentId"`
	SubjectID         string        `db:"SUBJECT_ID" json:"subjectId"`
	ConsentType       string        `db:"CONSENT_TYPE" json:"consentType"`
	Purpose           string        `db:"PURPOSE" json:"purpose"`
	PolicyVersion     string        `db:"POLICY_VERSION" json:"policyVersion"`
	Status            ConsentStatus `db:"STATUS" json:"status"`
	CreatedTime       int64         `db:"CREATED_TIME" json:"createdTime"`
	RevokedTime       *int64        `db:"REVOKED_TIME" json:"revokedTime,omitempty"`
	PreviousConsentID *string       `db:"PREVIOUS_CONSENT_ID" json:"previousConsentId,omitempty"`
}

// IsRevoked reports whether the record has been revoked
func (r *ConsentRecord) IsRevoked() bool {
	return r.Status == ConsentStatusRevoked
}

// ConsentStatusAudit represents the CONSENT_STATUS_AUDIT table. One row is
// appended for the initial grant and one for the revocation.
type ConsentStatusAudit struct {
	StatusAuditID  string  `db:"STATUS_AUDIT_ID" json:"statusAuditId"`
	ConsentID      string  `db:"CONSENT_ID" json:"consentId"`
	CurrentStatus  string  `db:"CURRENT_STATUS" json:"currentStatus"`
	PreviousStatus *string `db:"PREVIOUS_STATUS" json:"previousStatus,omitempty"`
	ActionTime     int64   `db:"ACTION_TIME" json:"actionTime"`
	ActionBy       *string `db:"ACTION_BY" json:"actionBy,omitempty"`
	Reason         *string `db:"REASON" json:"reason,omitempty"`
}

// ConsentSearchFilters holds the conjunctive filters of an administrator
// listing. Zero values mean "no restriction".
type ConsentSearchFilters struct {
	SubjectID   string
	Status      ConsentStatus
	ConsentType string
	FromTime    *int64
	ToTime      *int64
	Limit       int
	Offset      int
}

// ConsentCaptureAPIRequest is the body of POST /consents
type ConsentCaptureAPIRequest struct {
	ConsentType   string  `json:"consentType" binding:"required"`
	Purpose       string  `json:"purpose" binding:"required"`
	PolicyVersion string  `json:"policyVersion" binding:"required"`
	Supersedes    *string `json:"supersedes,omitempty"`
}

// ConsentRevokeAPIRequest is the optional body of POST /consents/{id}/revoke
type ConsentRevokeAPIRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ConsentListResponse wraps a list of consent records
type ConsentListResponse struct {
	Data []ConsentRecord `json:"data"`
}

// ConsentSearchResponse is the administrator listing with paging metadata
type ConsentSearchResponse struct {
	Data     []ConsentRecord       `json:"data"`
	Metadata ConsentSearchMetadata `json:"metadata"`
}

// ConsentSearchMetadata represents pagination metadata
type ConsentSearchMetadata struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ConsentChainResponse is the supersession lineage, oldest first
type ConsentChainResponse struct {
	Data []ConsentRecord `json:"data"`
}

// ConsentAuditResponse lists the status audit rows of one record
type ConsentAuditResponse struct {
	ConsentID string               `json:"consentId"`
	Data      []ConsentStatusAudit `json:"data"`
}
