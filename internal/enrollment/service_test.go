package enrollment

import (
	"bytes"
	"context"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/photostore"
)

type fakeRepo struct {
	pairs  []ImageRecord
	nextID int
}

func (f *fakeRepo) InsertImagePair(_ context.Context, base, mirror ImageRecord) (ImageRecord, ImageRecord, error) {
	f.nextID++
	base.ID = f.nextID
	f.nextID++
	mirror.ID = f.nextID
	mirror.Mirrored = true
	f.pairs = append(f.pairs, base, mirror)
	return base, mirror, nil
}

func (f *fakeRepo) DeleteImage(context.Context, int) error { return nil }

func (f *fakeRepo) ListByGuardian(_ context.Context, guardianID int) ([]ImageRecord, error) {
	var out []ImageRecord
	for _, rec := range f.pairs {
		if rec.GuardianID == guardianID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) CandidatesByStudents(context.Context, []int) ([]Candidate, error) {
	return nil, nil
}

func (f *fakeRepo) LinkedStudents(context.Context, int, []int) ([]int, error) {
	return nil, nil
}

type fakeExtractor struct {
	vecs []embedding.Vector
	errs []error
	call int
}

func (f *fakeExtractor) Extract([]byte) (embedding.Vector, error) {
	i := f.call
	f.call++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.vecs[i], nil
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(32, 32, color.NRGBA{R: 200, G: 180, B: 160, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func newPhotos(t *testing.T) photostore.Store {
	t.Helper()
	local, err := photostore.NewLocal(t.TempDir())
	require.NoError(t, err)
	return local
}

func TestEnrollStoresBaseAndMirror(t *testing.T) {
	repo := &fakeRepo{}
	baseVec := embedding.Vector{0.1, 0.2}
	mirrorVec := embedding.Vector{0.2, 0.1}
	svc := NewService(repo, &fakeExtractor{vecs: []embedding.Vector{baseVec, mirrorVec}}, newPhotos(t))

	result, err := svc.Enroll(context.Background(), 7, testPhoto(t))
	require.NoError(t, err)

	assert.Equal(t, 7, result.Base.GuardianID)
	assert.Equal(t, 7, result.Mirror.GuardianID)
	assert.False(t, result.Base.Mirrored)
	assert.True(t, result.Mirror.Mirrored)
	assert.Equal(t, baseVec, result.Base.Embedding)
	assert.Equal(t, mirrorVec, result.Mirror.Embedding)
	assert.NotEqual(t, result.Base.Path, result.Mirror.Path)
	assert.Len(t, repo.pairs, 2)
}

func TestListReturnsEnrolledPairs(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeExtractor{vecs: []embedding.Vector{{0.1}, {0.2}}}, newPhotos(t))

	_, err := svc.Enroll(context.Background(), 7, testPhoto(t))
	require.NoError(t, err)

	records, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Mirrored)
	assert.True(t, records[1].Mirrored)

	records, err = svc.List(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnrollNoFaceNothingPersisted(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeExtractor{errs: []error{embedding.ErrNoFace}}, newPhotos(t))

	_, err := svc.Enroll(context.Background(), 7, testPhoto(t))
	assert.ErrorIs(t, err, embedding.ErrNoFace)
	assert.Empty(t, repo.pairs)
}

func TestEnrollBadImage(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeExtractor{errs: []error{embedding.ErrBadImage}}, newPhotos(t))

	_, err := svc.Enroll(context.Background(), 7, []byte("not an image"))
	assert.ErrorIs(t, err, embedding.ErrBadImage)
	assert.Empty(t, repo.pairs)
}

func TestMirrorFlipsPixels(t *testing.T) {
	// A photo with a distinct left edge should differ from its mirror.
	img := imaging.New(8, 8, color.NRGBA{A: 255})
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	mirrored, err := embedding.Mirror(buf.Bytes())
	require.NoError(t, err)
	assert.NotEqual(t, buf.Bytes(), mirrored)

	decoded, err := imaging.Decode(bytes.NewReader(mirrored))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}
