package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/domain/approval"
)

// DefaultDetailedLimit is how many audited subjects detailed statistics list
const DefaultDetailedLimit = 10

// Statistics summarizes subjects of one type by current status
type Statistics struct {
	Total              int        `json:"total"`
	Approved           int        `json:"approved"`
	Pending            int        `json:"pending"`
	Rejected           int        `json:"rejected"`
	ApprovedPercentage float64    `json:"approved_percentage"`
	PendingPercentage  float64    `json:"pending_percentage"`
	RejectedPercentage float64    `json:"rejected_percentage"`
	DateRange          *DateRange `json:"date_range,omitempty"`
}

// DateRange echoes the bounds a statistics request was restricted to
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AuditedSubject pairs a subject with its latest record
type AuditedSubject struct {
	Subject        *approval.Subject `json:"subject"`
	LatestApproval *approval.Record  `json:"latest_approval"`
}

// DetailedStatistics extends Statistics with recent activity
type DetailedStatistics struct {
	Statistics
	LatestApprovals  []AuditedSubject           `json:"latest_approvals"`
	RejectionReasons []approval.ReasonBreakdown `json:"rejection_reasons"`
}

// TypeLister names the configured subject types
type TypeLister interface {
	SubjectTypes() []string
}

// StatisticsService aggregates approval outcomes
type StatisticsService interface {
	GetStatistics(ctx context.Context, subjectType string) (*Statistics, error)
	GetAllStatistics(ctx context.Context) (map[string]*Statistics, error)
	// GetStatisticsForDateRange limits the population to subjects created
	// between the start of start's day and the end of end's day
	GetStatisticsForDateRange(ctx context.Context, subjectType, start, end string) (*Statistics, error)
	// GetDetailedStatistics returns nil when the type has no audit records
	GetDetailedStatistics(ctx context.Context, subjectType string, limit int) (*DetailedStatistics, error)

	ApprovalPercentage(ctx context.Context, subjectType string) (float64, error)
	RejectionPercentage(ctx context.Context, subjectType string) (float64, error)
	PendingPercentage(ctx context.Context, subjectType string) (float64, error)

	SubjectTypes() []string
}

type statisticsServiceImpl struct {
	catalog port.SubjectCatalog
	records port.AuditRecordStore
	scopes  Scopes
	types   TypeLister
	logger  Logger
}

// NewStatisticsService creates a new StatisticsService
func NewStatisticsService(
	catalog port.SubjectCatalog,
	records port.AuditRecordStore,
	scopes Scopes,
	types TypeLister,
	logger Logger,
) StatisticsService {
	return &statisticsServiceImpl{
		catalog: catalog,
		records: records,
		scopes:  scopes,
		types:   types,
		logger:  logger,
	}
}

func (s *statisticsServiceImpl) GetStatistics(ctx context.Context, subjectType string) (*Statistics, error) {
	return s.collect(ctx, port.SubjectQuery{Type: subjectType})
}

func (s *statisticsServiceImpl) GetAllStatistics(ctx context.Context) (map[string]*Statistics, error) {
	all := make(map[string]*Statistics)
	for _, subjectType := range s.types.SubjectTypes() {
		stats, err := s.GetStatistics(ctx, subjectType)
		if err != nil {
			return nil, err
		}
		all[subjectType] = stats
	}
	return all, nil
}

func (s *statisticsServiceImpl) GetStatisticsForDateRange(ctx context.Context, subjectType, start, end string) (*Statistics, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return nil, &approval.InputError{Field: "date range", Reason: "start date and end date cannot be empty"}
	}

	from, err := parseDay(start)
	if err != nil {
		return nil, &approval.InputError{Field: "start date", Value: start, Reason: "invalid date format"}
	}
	to, err := parseDay(end)
	if err != nil {
		return nil, &approval.InputError{Field: "end date", Value: end, Reason: "invalid date format"}
	}

	from = startOfDay(from)
	to = startOfDay(to).Add(24*time.Hour - time.Nanosecond)

	stats, err := s.collect(ctx, port.SubjectQuery{Type: subjectType, CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, err
	}
	stats.DateRange = &DateRange{Start: start, End: end}
	return stats, nil
}

func (s *statisticsServiceImpl) GetDetailedStatistics(ctx context.Context, subjectType string, limit int) (*DetailedStatistics, error) {
	audited, err := s.records.CountBy(ctx, "", subjectType)
	if err != nil {
		return nil, err
	}
	if audited == 0 {
		return nil, nil
	}

	basic, err := s.GetStatistics(ctx, subjectType)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultDetailedLimit
	}
	subjects, err := s.catalog.List(ctx, port.SubjectQuery{Type: subjectType, AuditedOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	latest := make([]AuditedSubject, 0, len(subjects))
	for _, subject := range subjects {
		record, err := s.records.LatestFor(ctx, subject.SubjectRef())
		if err != nil {
			return nil, err
		}
		latest = append(latest, AuditedSubject{Subject: subject, LatestApproval: record})
	}

	reasons, err := s.records.RejectionReasonCounts(ctx, subjectType)
	if err != nil {
		return nil, err
	}

	return &DetailedStatistics{
		Statistics:       *basic,
		LatestApprovals:  latest,
		RejectionReasons: reasons,
	}, nil
}

func (s *statisticsServiceImpl) ApprovalPercentage(ctx context.Context, subjectType string) (float64, error) {
	stats, err := s.GetStatistics(ctx, subjectType)
	if err != nil {
		return 0, err
	}
	return stats.ApprovedPercentage, nil
}

func (s *statisticsServiceImpl) RejectionPercentage(ctx context.Context, subjectType string) (float64, error) {
	stats, err := s.GetStatistics(ctx, subjectType)
	if err != nil {
		return 0, err
	}
	return stats.RejectedPercentage, nil
}

func (s *statisticsServiceImpl) PendingPercentage(ctx context.Context, subjectType string) (float64, error) {
	stats, err := s.GetStatistics(ctx, subjectType)
	if err != nil {
		return 0, err
	}
	return stats.PendingPercentage, nil
}

func (s *statisticsServiceImpl) SubjectTypes() []string {
	return s.types.SubjectTypes()
}

// collect counts the population described by base, then each status within it
func (s *statisticsServiceImpl) collect(ctx context.Context, base port.SubjectQuery) (*Statistics, error) {
	total, err := s.catalog.Count(ctx, base)
	if err != nil {
		s.logger.Error("Failed to count subjects", "subject_type", base.Type, "error", err)
		return nil, err
	}

	counts := make(map[approval.Status]int, 3)
	for _, status := range approval.Statuses() {
		filter, err := s.scopes.WithStatus(base.Type, status)
		if err != nil {
			return nil, err
		}
		q := base
		q.Filter = filter
		n, err := s.catalog.Count(ctx, q)
		if err != nil {
			s.logger.Error("Failed to count subjects by status",
				"subject_type", base.Type,
				"status", status.String(),
				"error", err)
			return nil, err
		}
		counts[status] = n
	}

	return newStatistics(total,
		counts[approval.StatusApproved],
		counts[approval.StatusPending],
		counts[approval.StatusRejected],
	), nil
}

func newStatistics(total, approved, pending, rejected int) *Statistics {
	return &Statistics{
		Total:              total,
		Approved:           approved,
		Pending:            pending,
		Rejected:           rejected,
		ApprovedPercentage: percentage(approved, total),
		PendingPercentage:  percentage(pending, total),
		RejectedPercentage: percentage(rejected, total),
	}
}

// percentage rounds to two decimals and is 0 for an empty population
func percentage(value, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(value)/float64(total)*100*100) / 100
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	_, err := time.Parse(time.DateOnly, s)
	return time.Time{}, err
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ StatisticsService = (*statisticsServiceImpl)(nil)
