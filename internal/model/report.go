package model

import "time"

// Enquiry is one credit-inquiry event for a customer.
type Enquiry struct {
	CustomerNo     string `json:"customer_no" csv:"customer_no"`
	SubscriberName string `json:"subscriber_name" csv:"subscriber_name"`
	LoanType       string `json:"loan_type" csv:"loan_type"`
	InquiryDate    string `json:"inquiry_date" csv:"inquiry_date"`
}

// ReportPair is the fine-tuning pair produced for one customer: the factual
// profile and the classified list of changes.
type ReportPair struct {
	CustomerNo           string `json:"customer_no" csv:"customer_no"`
	CustomerInfo         string `json:"customer_info" csv:"customer_info"`
	CustomerCreditUpdate string `json:"customer_credit_update" csv:"customer_credit_update"`
}

// RunStatus represents the current state of a narrative run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one batch execution that produced report pairs.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Status    RunStatus `json:"status"`
	Customers int       `json:"customers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
