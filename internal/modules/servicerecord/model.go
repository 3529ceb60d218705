package servicerecord

// CreateRequest opens a service record for an approved request.
type CreateRequest struct {
	ServiceRequestID string `json:"service_request_id" validate:"required,uuid"`
	TechnicianID     string `json:"technician_id,omitempty" validate:"omitempty,uuid"`
	Notes            string `json:"notes" validate:"max=2000"`
}

// ProgressRequest carries optional notes for start, hold and resume.
type ProgressRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// CompleteRequest records the work performed.
type CompleteRequest struct {
	WorkPerformed string `json:"work_performed" validate:"max=5000"`
	Notes         string `json:"notes" validate:"max=2000"`
}
