package bins

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleancity/wastetrack/internal/validation"
)

type mockRepository struct {
	bins map[string]Bin
	seq  int
}

func (m *mockRepository) List(context.Context) ([]Bin, error) {
	out := make([]Bin, 0, len(m.bins))
	for _, b := range m.bins {
		out = append(out, b)
	}
	return out, nil
}

func (m *mockRepository) Insert(_ context.Context, b Bin) (Bin, error) {
	m.seq++
	b.ID = fmt.Sprintf("bin-%d", m.seq)
	m.bins[b.ID] = b
	return b, nil
}

func (m *mockRepository) Update(_ context.Context, b Bin) (Bin, error) {
	if _, ok := m.bins[b.ID]; !ok {
		return Bin{}, ErrNotFound
	}
	m.bins[b.ID] = b
	return b, nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.bins[id]; !ok {
		return ErrNotFound
	}
	delete(m.bins, id)
	return nil
}

func (m *mockRepository) InsertBatch(ctx context.Context, batch []Bin) (int, error) {
	for _, b := range batch {
		if _, err := m.Insert(ctx, b); err != nil {
			return 0, err
		}
	}
	return len(batch), nil
}

func TestCreateDefaults(t *testing.T) {
	svc := NewService(&mockRepository{bins: map[string]Bin{}})
	b, err := svc.Create(context.Background(), Input{Location: " Near park gate ", Area: "Ward 12"})
	require.NoError(t, err)
	assert.Equal(t, "Near park gate", b.Location)
	assert.Equal(t, CapacityMedium, b.Capacity)
	assert.Equal(t, StatusActive, b.Status)
	assert.Nil(t, b.Locality)
}

func TestCreateRequiresLocationAndArea(t *testing.T) {
	svc := NewService(&mockRepository{bins: map[string]Bin{}})
	_, err := svc.Create(context.Background(), Input{Capacity: "huge"})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "location")
	assert.Contains(t, errs, "area")
	assert.Contains(t, errs, "capacity")
}

func TestUpdateAndDelete(t *testing.T) {
	repo := &mockRepository{bins: map[string]Bin{}}
	svc := NewService(repo)
	b, err := svc.Create(context.Background(), Input{Location: "Market", Area: "Ward 3"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), b.ID, Input{Location: "Market", Area: "Ward 3", Locality: "East", Capacity: CapacityLarge, Status: StatusInactive})
	require.NoError(t, err)
	assert.Equal(t, CapacityLarge, updated.Capacity)
	require.NotNil(t, updated.Locality)
	assert.Equal(t, "East", *updated.Locality)

	require.NoError(t, svc.Delete(context.Background(), b.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), b.ID), ErrNotFound)
}

func TestImportIsAllOrNothing(t *testing.T) {
	repo := &mockRepository{bins: map[string]Bin{}}
	svc := NewService(repo)

	_, err := svc.Import(context.Background(), []Input{{Location: "A", Area: "W1"}, {Location: "B"}})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "2.area")
	assert.Empty(t, repo.bins)

	n, err := svc.Import(context.Background(), []Input{{Location: "A", Area: "W1"}, {Location: "B", Area: "W2", Capacity: "SMALL"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.bins, 2)
}
