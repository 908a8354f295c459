package company

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ruz-auth/internal/domain"
	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/repository"
)

const sampleDetail = `{
	"id": 1234,
	"dic": "2020000000",
	"nazovUJ": "ACME s.r.o.",
	"mesto": "Bratislava",
	"ulica": "",
	"psc": "81101",
	"datumZalozenia": "2015-03-01",
	"datumZrusenia": "",
	"pravnaForma": "112",
	"skNace": "62010",
	"kraj": "1",
	"konsolidovana": "false",
	"idUctovnychZavierok": [11, "12", 13],
	"zdrojDat": "SUSR",
	"datumPoslednejUpravy": "2024-05-06T10:00:00Z"
}`

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) FindIDsByICO(ctx context.Context, ico string) ([]int64, error) {
	args := m.Called(ctx, ico)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *mockRegistry) GetDetail(ctx context.Context, id int64) ([]byte, error) {
	args := m.Called(ctx, id)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

type mockCompanies struct {
	mock.Mock
}

func (m *mockCompanies) FindByUserID(ctx context.Context, userID int64) (*domain.Company, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*domain.Company)
	return c, args.Error(1)
}

func (m *mockCompanies) FindByID(ctx context.Context, id int64) (*domain.Company, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.Company)
	return c, args.Error(1)
}

func (m *mockCompanies) Create(ctx context.Context, company *domain.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichForUser(t *testing.T) {
	user := &domain.User{ID: 7}
	stored := &domain.Company{ID: 99, UserID: 7, ICO: "12345678", NazovUJ: "ACME s.r.o."}

	testCases := []struct {
		name       string
		setup      func(r *mockRegistry, c *mockCompanies)
		wantReason Reason
		wantID     int64
	}{
		{
			name: "creates company",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").Return([]int64{1234}, nil).Once()
				r.On("GetDetail", mock.Anything, int64(1234)).Return([]byte(sampleDetail), nil).Once()
				c.On("Create", mock.Anything, mock.AnythingOfType("*domain.Company")).Run(func(args mock.Arguments) {
					args.Get(1).(*domain.Company).ID = 55
				}).Return(nil).Once()
			},
			wantID: 55,
		},
		{
			name: "existing company is returned without registry calls",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(stored, nil).Once()
			},
			wantID: 99,
		},
		{
			name: "registry has no match",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").Return([]int64{}, nil).Once()
			},
			wantReason: ReasonNotFound,
		},
		{
			name: "registry unavailable",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").
					Return(nil, apperrors.NewUpstreamUnavailableError("registeruz", errors.New("timeout"))).Once()
			},
			wantReason: ReasonUpstream,
		},
		{
			name: "detail without name",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").Return([]int64{1}, nil).Once()
				r.On("GetDetail", mock.Anything, int64(1)).Return([]byte(`{"ico":"12345678"}`), nil).Once()
			},
			wantReason: ReasonInternal,
		},
		{
			name: "concurrent insert returns stored company",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").Return([]int64{1234}, nil).Once()
				r.On("GetDetail", mock.Anything, int64(1234)).Return([]byte(sampleDetail), nil).Once()
				c.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicatedEntry).Once()
				c.On("FindByUserID", mock.Anything, int64(7)).Return(stored, nil).Once()
			},
			wantID: 99,
		},
		{
			name: "persistence failure",
			setup: func(r *mockRegistry, c *mockCompanies) {
				c.On("FindByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound).Once()
				r.On("FindIDsByICO", mock.Anything, "12345678").Return([]int64{1234}, nil).Once()
				r.On("GetDetail", mock.Anything, int64(1234)).Return([]byte(sampleDetail), nil).Once()
				c.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
			},
			wantReason: ReasonInternal,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			registry := new(mockRegistry)
			companies := new(mockCompanies)
			tc.setup(registry, companies)

			enricher := NewEnricher(registry, companies, testLogger())
			company, err := enricher.EnrichForUser(context.Background(), user, "12345678")

			if tc.wantReason != "" {
				require.Error(t, err)
				assert.Nil(t, company)
				assert.Equal(t, tc.wantReason, ReasonOf(err))
			} else {
				require.NoError(t, err)
				require.NotNil(t, company)
				assert.Equal(t, tc.wantID, company.ID)
			}

			registry.AssertExpectations(t)
			companies.AssertExpectations(t)
		})
	}
}

func TestMapDetail(t *testing.T) {
	c := mapDetail([]byte(sampleDetail))

	assert.Equal(t, "ACME s.r.o.", c.NazovUJ)
	require.NotNil(t, c.DIC)
	assert.Equal(t, "2020000000", *c.DIC)
	assert.Nil(t, c.Ulica)
	assert.Nil(t, c.SID)
	require.NotNil(t, c.DatumZalozenia)
	assert.Equal(t, time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC), *c.DatumZalozenia)
	assert.Nil(t, c.DatumZrusenia)
	require.NotNil(t, c.DatumPoslednejUpravy)
	assert.Equal(t, 2024, c.DatumPoslednejUpravy.Year())
	require.NotNil(t, c.Konsolidovana)
	assert.False(t, *c.Konsolidovana)
	assert.Equal(t, []int64{11, 12, 13}, c.IDUctovnychZavierok)
	assert.Nil(t, c.IDVyrocnychSprav)
	require.NotNil(t, c.PravnaForma)
	assert.Equal(t, "112", *c.PravnaForma)
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want *bool
	}{
		{in: `true`, want: boolPtr(true)},
		{in: `false`, want: boolPtr(false)},
		{in: `"yes"`, want: boolPtr(true)},
		{in: `"Off"`, want: boolPtr(false)},
		{in: `1`, want: boolPtr(true)},
		{in: `0`, want: boolPtr(false)},
		{in: `1.0`, want: boolPtr(true)},
		{in: `1.7`, want: nil},
		{in: `0.5`, want: nil},
		{in: `2`, want: nil},
		{in: `""`, want: boolPtr(false)},
		{in: `"maybe"`, want: nil},
		{in: `null`, want: nil},
		{in: `[1]`, want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			doc := mapDetail([]byte(`{"konsolidovana":` + tc.in + `}`))
			assert.Equal(t, tc.want, doc.Konsolidovana)
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	c := mapDetail([]byte(`{"datumZalozenia":"not a date","datumZrusenia":20200101}`))

	assert.Nil(t, c.DatumZalozenia)
	assert.Nil(t, c.DatumZrusenia)
}

func boolPtr(b bool) *bool { return &b }
