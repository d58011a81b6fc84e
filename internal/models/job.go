package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "FULLTIME"
	EmploymentPartTime   EmploymentType = "PARTTIME"
	EmploymentInternship EmploymentType = "INTERNSHIP"
	EmploymentContract   EmploymentType = "CONTRACT"
)

func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentInternship, EmploymentContract:
		return true
	}
	return false
}

type JobStatus string

const (
	StatusSaved       JobStatus = "SAVED"
	StatusApplied     JobStatus = "APPLIED"
	StatusShortlisted JobStatus = "SHORTLISTED"
	StatusInterview   JobStatus = "INTERVIEW"
	StatusOffer       JobStatus = "OFFER"
	StatusRejected    JobStatus = "REJECTED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusSaved, StatusApplied, StatusShortlisted, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// Slot names one of the two attachment fields on a Job.
type Slot string

const (
	SlotResume      Slot = "resume"
	SlotCoverLetter Slot = "cover_letter"
)

var Slots = []Slot{SlotResume, SlotCoverLetter}

func (s Slot) Valid() bool { return s == SlotResume || s == SlotCoverLetter }

// Column is the jobs column holding the slot's resolved URL.
func (s Slot) Column() string { return string(s) + "_url" }

type Job struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"job_id"`
	UserID string `gorm:"column:user_id;type:uuid;index;not null" json:"-"`

	JobTitle           string         `gorm:"column:job_title;type:varchar(200);not null" json:"job_title"`
	CompanyName        string         `gorm:"column:company_name;type:varchar(250);not null" json:"company_name"`
	Location           string         `gorm:"column:location;type:varchar(300)" json:"location"`
	EmploymentType     EmploymentType `gorm:"column:employment_type;type:varchar(20);default:FULLTIME" json:"employment_type"`
	ExperienceRequired string         `gorm:"column:experience_required;type:varchar(20)" json:"experience_required"`
	Skills             pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`
	CurrentStatus      JobStatus      `gorm:"column:current_status;type:varchar(20);default:SAVED;index" json:"current_status"`
	AppliedDate        *time.Time     `gorm:"column:applied_date;type:date" json:"applied_date"`

	Notes    datatypes.JSONSlice[string] `gorm:"column:notes;type:jsonb" json:"notes"`
	JobURL   string                      `gorm:"column:job_url;type:varchar(500)" json:"job_url"`
	IsActive bool                        `gorm:"column:is_active;default:true" json:"is_active"`

	// written only by the attachment worker
	ResumeURL      string `gorm:"column:resume_url;type:text" json:"resume_url"`
	CoverLetterURL string `gorm:"column:cover_letter_url;type:text" json:"cover_letter_url"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) SlotURL(s Slot) string {
	switch s {
	case SlotResume:
		return j.ResumeURL
	case SlotCoverLetter:
		return j.CoverLetterURL
	}
	return ""
}

func (j *Job) SetSlotURL(s Slot, url string) {
	switch s {
	case SlotResume:
		j.ResumeURL = url
	case SlotCoverLetter:
		j.CoverLetterURL = url
	}
}
