package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/models"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/services"
	"github.com/sameboat/backend/internal/storage"
	"github.com/sameboat/backend/internal/utils"
)

type JobHandler struct {
	svc      services.JobService
	events   services.EventService
	maxBytes int64

	signer    storage.Signer
	signedTTL time.Duration
}

func NewJobHandler(svc services.JobService, events services.EventService, maxUploadBytes int64) *JobHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	return &JobHandler{svc: svc, events: events, maxBytes: maxUploadBytes}
}

// WithSignedURLs makes Get include a time-limited read URL for each stored
// attachment, for buckets that do not grant public read.
func (h *JobHandler) WithSignedURLs(s storage.Signer, ttl time.Duration) *JobHandler {
	h.signer, h.signedTTL = s, ttl
	return h
}

type jobRequest struct {
	JobTitle           *string                `json:"job_title"`
	CompanyName        *string                `json:"company_name"`
	Location           *string                `json:"location"`
	EmploymentType     *models.EmploymentType `json:"employment_type"`
	ExperienceRequired *string                `json:"experience_required"`
	Skills             *[]string              `json:"skills"`
	Notes              *[]string              `json:"notes"`
	CurrentStatus      *models.JobStatus      `json:"current_status"`
	AppliedDate        *string                `json:"applied_date"`
	JobURL             *string                `json:"job_url"`
	IsActive           *bool                  `json:"is_active"`
}

var dateLayouts = []string{"2006-01-02", "02-01-2006"}

func (r jobRequest) fields() (services.JobFields, error) {
	f := services.JobFields{
		JobTitle:           r.JobTitle,
		CompanyName:        r.CompanyName,
		Location:           r.Location,
		EmploymentType:     r.EmploymentType,
		ExperienceRequired: r.ExperienceRequired,
		Skills:             r.Skills,
		Notes:              r.Notes,
		CurrentStatus:      r.CurrentStatus,
		JobURL:             r.JobURL,
		IsActive:           r.IsActive,
	}
	if r.AppliedDate != nil && *r.AppliedDate != "" {
		d, err := parseDate(*r.AppliedDate)
		if err != nil {
			return f, err
		}
		f.AppliedDate = &d
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("applied_date %q is not YYYY-MM-DD or DD-MM-YYYY", s)
}

// bind reads a JSON or multipart body into fields and attachments.
func (h *JobHandler) bind(c *gin.Context, op string) (services.JobFields, services.Attachments, bool) {
	var req jobRequest
	files := services.Attachments{}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxBytes+1<<20)
		form, err := c.MultipartForm()
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid multipart body", err))
			return services.JobFields{}, nil, false
		}
		if err := formRequest(form, &req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, err.Error(), err))
			return services.JobFields{}, nil, false
		}
		for _, slot := range models.Slots {
			fhs := form.File[string(slot)]
			if len(fhs) == 0 {
				continue
			}
			a, err := h.readFile(fhs[0])
			if err != nil {
				writeError(c, utils.E(utils.CodeInvalidArgument, op, string(slot)+": "+err.Error(), err))
				return services.JobFields{}, nil, false
			}
			files[slot] = a
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return services.JobFields{}, nil, false
	}

	f, err := req.fields()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, err.Error(), err))
		return services.JobFields{}, nil, false
	}
	return f, files, true
}

func (h *JobHandler) readFile(fh *multipart.FileHeader) (*services.Attachment, error) {
	if fh.Size > h.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", h.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	return &services.Attachment{Filename: fh.Filename, Data: data}, nil
}

func formRequest(form *multipart.Form, req *jobRequest) error {
	str := func(k string) *string {
		if v, ok := form.Value[k]; ok && len(v) > 0 {
			s := v[0]
			return &s
		}
		return nil
	}
	req.JobTitle = str("job_title")
	req.CompanyName = str("company_name")
	req.Location = str("location")
	req.ExperienceRequired = str("experience_required")
	req.AppliedDate = str("applied_date")
	req.JobURL = str("job_url")
	if s := str("employment_type"); s != nil {
		t := models.EmploymentType(*s)
		req.EmploymentType = &t
	}
	if s := str("current_status"); s != nil {
		st := models.JobStatus(*s)
		req.CurrentStatus = &st
	}
	if s := str("is_active"); s != nil {
		b, err := strconv.ParseBool(*s)
		if err != nil {
			return fmt.Errorf("is_active must be a boolean")
		}
		req.IsActive = &b
	}

	var err error
	if req.Skills, err = formList(form.Value["skills"]); err != nil {
		return fmt.Errorf("skills: %w", err)
	}
	if req.Notes, err = formList(form.Value["notes"]); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	return nil
}

// formList accepts a list field sent either repeated or as one JSON array.
func formList(vals []string) (*[]string, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	if len(vals) == 1 && strings.HasPrefix(strings.TrimSpace(vals[0]), "[") {
		var out []string
		if err := json.Unmarshal([]byte(vals[0]), &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	out := append([]string(nil), vals...)
	return &out, nil
}

func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	f, files, ok := h.bind(c, "JobHandler.Create")
	if !ok {
		return
	}

	j, err := h.svc.Create(c.Request.Context(), userID, f, files)
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, OpCreated, j)
}

func (h *JobHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	f, files, ok := h.bind(c, "JobHandler.Update")
	if !ok {
		return
	}

	j, err := h.svc.Update(c.Request.Context(), c.Param("id"), userID, f, files)
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, OpUpdated, j)
}

func (h *JobHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, OpDeleted, nil)
}

func (h *JobHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	j, err := h.svc.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.signer == nil {
		c.JSON(http.StatusOK, j)
		return
	}
	c.JSON(http.StatusOK, jobDetail{Job: j, SignedURLs: h.signedURLs(c, j)})
}

type jobDetail struct {
	*models.Job
	SignedURLs map[models.Slot]string `json:"signed_urls,omitempty"`
}

// signedURLs skips slots that are empty or fail to sign; the plain URL is
// still in the body.
func (h *JobHandler) signedURLs(c *gin.Context, j *models.Job) map[models.Slot]string {
	var out map[models.Slot]string
	for _, slot := range models.Slots {
		key, err := storage.ExtractKey(j.SlotURL(slot))
		if err != nil {
			continue
		}
		u, err := h.signer.SignedGetURL(c.Request.Context(), key, h.signedTTL)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[models.Slot]string, len(models.Slots))
		}
		out[slot] = u
	}
	return out
}

type listResponse struct {
	Count   int64        `json:"count"`
	Results []models.Job `json:"results"`
}

func (h *JobHandler) List(c *gin.Context) {
	const op = "JobHandler.List"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	f := pgrepo.JobFilter{
		Status:         models.JobStatus(strings.ToUpper(c.Query("status"))),
		EmploymentType: models.EmploymentType(strings.ToUpper(c.Query("employment_type"))),
		Search:         c.Query("search"),
	}
	if v := c.Query("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "is_active must be a boolean", err))
			return
		}
		f.IsActive = &b
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(c, utils.E(utils.CodeInvalidArgument, op, name+" must be a non-negative integer", err))
				return
			}
			*dst = n
		}
	}

	jobs, total, err := h.svc.List(c.Request.Context(), userID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	c.JSON(http.StatusOK, listResponse{Count: total, Results: jobs})
}

func (h *JobHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	evs, err := h.events.ListForJob(c.Request.Context(), c.Param("id"), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": evs})
}
