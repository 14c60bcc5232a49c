package enrollment

import (
	"context"
	"fmt"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/photostore"
)

// ImageStore is the subset of the repository the service needs.
type ImageStore interface {
	InsertImagePair(ctx context.Context, base, mirror ImageRecord) (ImageRecord, ImageRecord, error)
	DeleteImage(ctx context.Context, imageID int) error
	ListByGuardian(ctx context.Context, guardianID int) ([]ImageRecord, error)
	CandidatesByStudents(ctx context.Context, studentIDs []int) ([]Candidate, error)
	LinkedStudents(ctx context.Context, guardianID int, studentIDs []int) ([]int, error)
}

// Service enrolls guardian reference photos: extract the embedding, derive the
// horizontally mirrored sibling, store both photos and both records.
type Service struct {
	repo      ImageStore
	extractor embedding.Extractor
	photos    photostore.Store
}

// NewService creates the enrollment service.
func NewService(repo ImageStore, extractor embedding.Extractor, photos photostore.Store) *Service {
	return &Service{repo: repo, extractor: extractor, photos: photos}
}

// EnrollResult reports both stored records for one uploaded photo.
type EnrollResult struct {
	Base   ImageRecord `json:"base"`
	Mirror ImageRecord `json:"mirror"`
}

// Enroll stores one guardian photo plus its mirrored augmentation. The mirror
// is derived here, at upload time, and never regenerated later.
func (s *Service) Enroll(ctx context.Context, guardianID int, imageData []byte) (EnrollResult, error) {
	baseVec, err := s.extractor.Extract(imageData)
	if err != nil {
		return EnrollResult{}, err
	}

	mirrorData, err := embedding.Mirror(imageData)
	if err != nil {
		return EnrollResult{}, err
	}
	mirrorVec, err := s.extractor.Extract(mirrorData)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("mirrored variant: %w", err)
	}

	basePath, err := s.photos.Save(imageData, ".jpg")
	if err != nil {
		return EnrollResult{}, err
	}
	mirrorPath, err := s.photos.Save(mirrorData, ".jpg")
	if err != nil {
		return EnrollResult{}, err
	}

	base := ImageRecord{GuardianID: guardianID, Path: basePath, Embedding: baseVec}
	mirror := ImageRecord{GuardianID: guardianID, Path: mirrorPath, Embedding: mirrorVec}
	base, mirror, err = s.repo.InsertImagePair(ctx, base, mirror)
	if err != nil {
		return EnrollResult{}, err
	}
	return EnrollResult{Base: base, Mirror: mirror}, nil
}

// Delete removes a guardian image record (and its mirrored sibling).
func (s *Service) Delete(ctx context.Context, imageID int) error {
	return s.repo.DeleteImage(ctx, imageID)
}

// List returns every stored reference photo for a guardian, base and mirrored.
func (s *Service) List(ctx context.Context, guardianID int) ([]ImageRecord, error) {
	return s.repo.ListByGuardian(ctx, guardianID)
}

// Gather returns every guardian reference embedding linked to the students.
func (s *Service) Gather(ctx context.Context, studentIDs []int) ([]Candidate, error) {
	return s.repo.CandidatesByStudents(ctx, studentIDs)
}

// LinkedStudents filters studentIDs down to the ones linked to the guardian.
func (s *Service) LinkedStudents(ctx context.Context, guardianID int, studentIDs []int) ([]int, error) {
	return s.repo.LinkedStudents(ctx, guardianID, studentIDs)
}
