package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/attendance"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/enrollment"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/metrics"
)

// CandidateSource resolves enrolled guardian embeddings and links.
type CandidateSource interface {
	Gather(ctx context.Context, studentIDs []int) ([]enrollment.Candidate, error)
	LinkedStudents(ctx context.Context, guardianID int, studentIDs []int) ([]int, error)
}

// Reconciler applies the pickup to the day's attendance record.
type Reconciler interface {
	CheckOut(ctx context.Context, studentID int, date string, guardianID int, at string) (attendance.Record, error)
}

// StudentOutcome is the per-student result of applying a recognized pickup.
type StudentOutcome struct {
	StudentID int    `json:"id_hs"`
	Status    string `json:"status"`
}

// Result is what the kiosk gets back for one camera frame.
type Result struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	GuardianID int              `json:"id_ph,omitempty"`
	ImagePath  string           `json:"image_path,omitempty"`
	Distance   float64          `json:"distance,omitempty"`
	Students   []StudentOutcome `json:"students,omitempty"`
}

// Service runs the pickup pipeline: frame -> embedding -> candidates -> vote
// -> attendance check-out.
type Service struct {
	extractor embedding.Extractor
	source    CandidateSource
	att       Reconciler
	now       func() time.Time
}

// NewService creates the recognition pipeline.
func NewService(extractor embedding.Extractor, source CandidateSource, att Reconciler) *Service {
	return &Service{extractor: extractor, source: source, att: att, now: time.Now}
}

// Recognize matches the frame against the guardians of the given students and,
// on a match, checks out every requested student linked to that guardian.
// Input errors and transient persistence failures return an error; every other
// outcome is a structured Result. When a failure interrupts the check-out loop
// the Result still carries the per-student outcomes committed before it.
func (s *Service) Recognize(ctx context.Context, frame []byte, studentIDs []int, threshold float64) (Result, error) {
	if len(frame) == 0 {
		return Result{}, fmt.Errorf("%w: empty frame", embedding.ErrBadImage)
	}
	if len(studentIDs) == 0 {
		return Result{}, errors.New("student ids required")
	}

	start := s.now()
	query, err := s.extractor.Extract(frame)
	if err != nil {
		metrics.Recognitions.WithLabelValues("input_error").Inc()
		return Result{}, err
	}
	metrics.ExtractionSeconds.Observe(s.now().Sub(start).Seconds())

	candidates, err := s.source.Gather(ctx, studentIDs)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		metrics.Recognitions.WithLabelValues("no_candidates").Inc()
		return Result{Success: false, Message: "no enrolled guardians for the requested students"}, nil
	}

	match := Score(query, candidates, threshold)
	if match == nil {
		metrics.Recognitions.WithLabelValues("no_match").Inc()
		return Result{Success: false, Message: "no candidate below threshold"}, nil
	}
	metrics.MatchDistance.Observe(match.Distance)

	linked, err := s.source.LinkedStudents(ctx, match.GuardianID, studentIDs)
	if err != nil {
		return Result{}, err
	}
	if len(linked) == 0 {
		metrics.Recognitions.WithLabelValues("no_link").Inc()
		return Result{
			Success:    false,
			Message:    "recognized guardian is not linked to the requested students",
			GuardianID: match.GuardianID,
			ImagePath:  match.ImagePath,
			Distance:   match.Distance,
		}, nil
	}

	now := s.now()
	date := now.Format("2006-01-02")
	at := now.Format("15:04:05")

	res := Result{
		GuardianID: match.GuardianID,
		ImagePath:  match.ImagePath,
		Distance:   match.Distance,
	}
	for _, studentID := range linked {
		_, err := s.att.CheckOut(ctx, studentID, date, match.GuardianID, at)
		switch {
		case err == nil:
			res.Success = true
			res.Students = append(res.Students, StudentOutcome{StudentID: studentID, Status: "checked out"})
		case errors.Is(err, attendance.ErrNotCheckedIn):
			res.Students = append(res.Students, StudentOutcome{StudentID: studentID, Status: "not checked in today"})
		case errors.Is(err, attendance.ErrAlreadyCheckedOut):
			res.Students = append(res.Students, StudentOutcome{StudentID: studentID, Status: "already picked up today"})
		default:
			// Transient persistence failure mid-loop. Earlier students are
			// already committed, so hand back their outcomes with the error
			// instead of discarding them.
			return res, fmt.Errorf("check out student %d: %w", studentID, err)
		}
	}

	if res.Success {
		metrics.Recognitions.WithLabelValues("recognized").Inc()
		res.Message = "guardian recognized"
	} else {
		metrics.Recognitions.WithLabelValues("conflict").Inc()
		// Single-student pickups carry the concrete reason.
		if len(res.Students) == 1 {
			res.Message = res.Students[0].Status
		} else {
			res.Message = "guardian recognized but no student could be checked out"
		}
	}
	return res, nil
}
