package product

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain"
)

type mockRepo struct {
	byID      map[string]Product
	createErr error
	updates   int
}

func (m *mockRepo) FindActiveByIDs(context.Context, []string) ([]Product, error) { return nil, nil }

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "product", ID: id}
	}
	return &p, nil
}

func (m *mockRepo) List(_ context.Context, includeDisabled bool) ([]Product, error) {
	var out []Product
	for _, p := range m.byID {
		if includeDisabled || p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	m.updates++
	m.byID[p.ID] = *p
	return nil
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{byID: map[string]Product{}}
	return NewService(repo, func() time.Time { return fixedNow }), repo
}

func validRequest() CreateRequest {
	return CreateRequest{
		Name:        "Basmati Rice 5kg",
		Slug:        "basmati-rice-5kg",
		SKU:         "RICE-5KG",
		Price:       decimal.RequireFromString("850.00"),
		WeightGrams: 5000,
	}
}

func TestCreate(t *testing.T) {
	svc, repo := newTestService()

	p, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, DefaultCurrency, p.Currency)
	assert.True(t, p.Active)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Contains(t, repo.byID, p.ID)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
		field  string
	}{
		{name: "empty name", mutate: func(r *CreateRequest) { r.Name = " " }, field: "name"},
		{name: "long name", mutate: func(r *CreateRequest) { r.Name = strings.Repeat("a", 256) }, field: "name"},
		{name: "slug case", mutate: func(r *CreateRequest) { r.Slug = "Rice" }, field: "slug"},
		{name: "long sku", mutate: func(r *CreateRequest) { r.SKU = strings.Repeat("s", 101) }, field: "sku"},
		{name: "zero price", mutate: func(r *CreateRequest) { r.Price = decimal.Zero }, field: "price"},
		{name: "huge price", mutate: func(r *CreateRequest) { r.Price = decimal.RequireFromString("10000000") }, field: "price"},
		{name: "negative weight", mutate: func(r *CreateRequest) { r.WeightGrams = -1 }, field: "weight"},
		{name: "currency", mutate: func(r *CreateRequest) { r.Currency = "taka" }, field: "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)

			var fe *domain.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Empty(t, repo.byID)
		})
	}
}

func TestCreate_Conflict(t *testing.T) {
	svc, repo := newTestService()
	repo.createErr = &domain.ConflictError{Entity: "product", Field: "sku", Value: "RICE-5KG"}

	_, err := svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_Partial(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	price := decimal.RequireFromString("799.50")
	got, err := svc.Update(context.Background(), p.ID, UpdateRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(got.Price))
	assert.Equal(t, p.Name, got.Name)

	bad := "Not A Slug"
	_, err = svc.Update(context.Background(), p.ID, UpdateRequest{Slug: &bad})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Update(context.Background(), "missing", UpdateRequest{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetActive(t *testing.T) {
	svc, repo := newTestService()
	p, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	got, err := svc.SetActive(context.Background(), p.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Zero(t, repo.updates)

	got, err = svc.SetActive(context.Background(), p.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 1, repo.updates)

	active, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
