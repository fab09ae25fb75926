package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/conflict"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/export"
	"github.com/noah-isme/class-scheduling-api/pkg/jobs"
	"github.com/noah-isme/class-scheduling-api/pkg/storage"
)

const conflictAuditJobType = "conflict_audit"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type auditScheduleReader interface {
	ListAll(ctx context.Context) ([]models.ScheduleDetail, error)
}

type reportFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string) (storage.Token, error)
}

// AuditFinding is one stored pair of schedules that collide. First and
// Second are ordered by schedule id.
type AuditFinding struct {
	Kind          conflict.Kind  `json:"kind"`
	Weekday       models.Weekday `json:"weekday"`
	FirstID       string         `json:"first_id"`
	FirstSubject  string         `json:"first_subject"`
	FirstRange    conflict.Range `json:"first_range"`
	SecondID      string         `json:"second_id"`
	SecondSubject string         `json:"second_subject"`
	SecondRange   conflict.Range `json:"second_range"`
	Classroom     string         `json:"classroom,omitempty"`
	Teacher       string         `json:"teacher,omitempty"`
	Message       string         `json:"message"`
}

// ScanSchedules checks every stored schedule against the others and returns
// each colliding pair once per kind and weekday.
func ScanSchedules(schedules []models.ScheduleDetail) []AuditFinding {
	slots := slotsFromDetails(schedules)
	type pairKey struct {
		kind   conflict.Kind
		day    models.Weekday
		lo, hi string
	}
	seen := make(map[pairKey]bool)
	findings := make([]AuditFinding, 0)
	for _, slot := range slots {
		report := conflict.CheckSchedule(conflict.Candidate{Slot: slot, ExcludeID: slot.ID}, slots)
		for _, c := range report {
			key := pairKey{kind: c.Kind, day: c.Weekday, lo: slot.ID, hi: c.ExistingID}
			first := AuditFinding{FirstID: slot.ID, FirstSubject: c.CandidateSubject, FirstRange: c.Candidate,
				SecondID: c.ExistingID, SecondSubject: c.ExistingSubject, SecondRange: c.Existing}
			if key.hi < key.lo {
				key.lo, key.hi = key.hi, key.lo
				first = AuditFinding{FirstID: c.ExistingID, FirstSubject: c.ExistingSubject, FirstRange: c.Existing,
					SecondID: slot.ID, SecondSubject: c.CandidateSubject, SecondRange: c.Candidate}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			first.Kind = c.Kind
			first.Weekday = c.Weekday
			first.Classroom = c.Classroom
			first.Teacher = c.Teacher
			first.Message = c.Message
			findings = append(findings, first)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.FirstRange.Start < b.FirstRange.Start
	})
	return findings
}

type conflictAuditEntry struct {
	audit models.ConflictAudit
	path  string
	token string
}

// ConflictAuditStore keeps audit job state in memory.
type ConflictAuditStore struct {
	mu      sync.RWMutex
	entries map[string]*conflictAuditEntry
}

// NewConflictAuditStore creates an empty store.
func NewConflictAuditStore() *ConflictAuditStore {
	return &ConflictAuditStore{entries: make(map[string]*conflictAuditEntry)}
}

func (s *ConflictAuditStore) put(audit models.ConflictAudit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[audit.ID] = &conflictAuditEntry{audit: audit}
}

func (s *ConflictAuditStore) get(id string) (models.ConflictAudit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return models.ConflictAudit{}, false
	}
	return entry.audit, true
}

func (s *ConflictAuditStore) update(id string, fn func(*conflictAuditEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if ok {
		fn(entry)
	}
	return ok
}

func (s *ConflictAuditStore) download(id string) (relPath, token string, status models.ConflictAuditStatus, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return "", "", "", false
	}
	return entry.path, entry.token, entry.audit.Status, true
}

func (s *ConflictAuditStore) purgeBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if entry.audit.FinishedAt != nil && entry.audit.FinishedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// ConflictAuditDownload is a resolved report file.
type ConflictAuditDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// ConflictAuditService starts audits and serves their results.
type ConflictAuditService struct {
	store   *ConflictAuditStore
	queue   jobDispatcher
	files   reportFileStore
	signer  downloadSigner
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewConflictAuditService constructs the service. Reports older than ttl are purged by StartCleanup.
func NewConflictAuditService(store *ConflictAuditStore, queue jobDispatcher, files reportFileStore, signer downloadSigner, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ConflictAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ConflictAuditService{store: store, queue: queue, files: files, signer: signer, metrics: metrics, ttl: ttl, logger: logger}
}

// Start queues a scan of every stored schedule.
func (s *ConflictAuditService) Start(ctx context.Context, actor Actor) (*models.ConflictAudit, error) {
	audit := models.ConflictAudit{
		ID:          uuid.NewString(),
		Status:      models.ConflictAuditPending,
		RequestedBy: actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	s.store.put(audit)
	if err := s.queue.Enqueue(jobs.Job{ID: audit.ID, Type: conflictAuditJobType}); err != nil {
		s.store.update(audit.ID, func(e *conflictAuditEntry) {
			e.audit.Status = models.ConflictAuditFailed
			e.audit.Error = err.Error()
		})
		s.metrics.RecordAuditJob(string(models.ConflictAuditFailed))
		return nil, internalError(err, "failed to queue conflict audit")
	}
	s.metrics.RecordAuditJob(string(models.ConflictAuditPending))
	s.logger.Info("conflict audit queued", zap.String("audit_id", audit.ID), zap.String("requested_by", actor.UserID))
	return &audit, nil
}

// Get returns the current state of an audit.
func (s *ConflictAuditService) Get(ctx context.Context, id string) (*models.ConflictAudit, error) {
	audit, ok := s.store.get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict audit not found")
	}
	return &audit, nil
}

// ResolveDownload validates a signed token and opens the report it names.
func (s *ConflictAuditService) ResolveDownload(ctx context.Context, token string) (*ConflictAuditDownload, error) {
	parsed, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	relPath, issued, status, ok := s.store.download(parsed.JobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict audit not found")
	}
	if status != models.ConflictAuditDone || issued != token || relPath != parsed.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match a finished audit")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, internalError(err, "failed to open conflict audit report")
	}
	return &ConflictAuditDownload{File: file, Filename: path.Base(relPath), ExpiresAt: parsed.ExpiresAt}, nil
}

// StartCleanup purges expired reports and their job state every interval.
func (s *ConflictAuditService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *ConflictAuditService) cleanup() {
	removed := s.store.purgeBefore(time.Now().Add(-s.ttl))
	files, err := s.files.CleanupOlderThan(s.ttl)
	if err != nil {
		s.logger.Warn("conflict audit cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 || len(files) > 0 {
		s.logger.Info("conflict audit cleanup", zap.Int("jobs", removed), zap.Int("files", len(files)))
	}
}

// ConflictAuditWorker runs queued audits.
type ConflictAuditWorker struct {
	store        *ConflictAuditStore
	schedules    auditScheduleReader
	files        reportFileStore
	signer       downloadSigner
	metrics      *MetricsService
	downloadPath string
	logger       *zap.Logger
}

// NewConflictAuditWorker constructs a worker. downloadPath is the public route serving reports.
func NewConflictAuditWorker(store *ConflictAuditStore, schedules auditScheduleReader, files reportFileStore, signer downloadSigner, metrics *MetricsService, downloadPath string, logger *zap.Logger) *ConflictAuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictAuditWorker{
		store:        store,
		schedules:    schedules,
		files:        files,
		signer:       signer,
		metrics:      metrics,
		downloadPath: downloadPath,
		logger:       logger,
	}
}

// Handle processes one audit job. Errors are retried by the queue.
func (w *ConflictAuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	if !w.store.update(job.ID, func(e *conflictAuditEntry) { e.audit.Status = models.ConflictAuditRunning }) {
		w.logger.Warn("conflict audit job has no state", zap.String("audit_id", job.ID))
		return nil
	}

	schedules, err := w.schedules.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	findings := ScanSchedules(schedules)
	checked := make(conflict.Report, len(findings))
	for i, f := range findings {
		checked[i] = conflict.Conflict{Kind: f.Kind, Weekday: f.Weekday, Message: f.Message}
	}
	w.metrics.RecordConflictCheck(CheckKindAudit, checked)

	data, err := export.NewCSVExporter().Render(findingsTable(findings))
	if err != nil {
		return fmt.Errorf("render conflict audit: %w", err)
	}
	relPath, err := w.files.Save(path.Join("conflict-audits", job.ID+".csv"), data)
	if err != nil {
		return err
	}
	token, expiresAt, err := w.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign conflict audit download: %w", err)
	}

	finished := time.Now().UTC()
	w.store.update(job.ID, func(e *conflictAuditEntry) {
		e.path = relPath
		e.token = token
		e.audit.Status = models.ConflictAuditDone
		e.audit.SchedulesSeen = len(schedules)
		e.audit.ConflictCount = len(findings)
		e.audit.Error = ""
		e.audit.DownloadURL = w.downloadPath + "?token=" + url.QueryEscape(token)
		e.audit.ExpiresAt = &expiresAt
		e.audit.FinishedAt = &finished
	})
	w.metrics.RecordAuditJob(string(models.ConflictAuditDone))
	w.logger.Info("conflict audit finished",
		zap.String("audit_id", job.ID),
		zap.Int("schedules", len(schedules)),
		zap.Int("conflicts", len(findings)),
	)
	return nil
}

// MarkFailed records a job that exhausted its retries. It matches jobs.FailureHook.
func (w *ConflictAuditWorker) MarkFailed(job jobs.Job, err error) {
	finished := time.Now().UTC()
	w.store.update(job.ID, func(e *conflictAuditEntry) {
		e.audit.Status = models.ConflictAuditFailed
		e.audit.Error = err.Error()
		e.audit.FinishedAt = &finished
	})
	w.metrics.RecordAuditJob(string(models.ConflictAuditFailed))
}

func findingsTable(findings []AuditFinding) export.Table {
	table := export.Table{
		Title:   "Schedule conflict audit",
		Columns: []string{"Kind", "Day", "Schedule A", "Subject A", "Time A", "Schedule B", "Subject B", "Time B", "Room", "Teacher", "Message"},
		Rows:    make([][]string, 0, len(findings)),
	}
	for _, f := range findings {
		table.Rows = append(table.Rows, []string{
			string(f.Kind), f.Weekday.String(),
			f.FirstID, f.FirstSubject, f.FirstRange.String(),
			f.SecondID, f.SecondSubject, f.SecondRange.String(),
			f.Classroom, f.Teacher, f.Message,
		})
	}
	return table
}
