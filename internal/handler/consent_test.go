package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosstrack/fieldtrack/internal/consent"
	"github.com/bosstrack/fieldtrack/internal/domain"
)

func TestRegisterConsent_OK(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	h := newServer(
		&mockEngine{},
		&mockConsents{
			registerWithConsent: func(_ context.Context, reg consent.Registration) (domain.Profile, error) {
				assert.Equal(t, "Maha Al Rashid", reg.FullName)
				assert.Equal(t, "D-99881", reg.VehiclePlate)
				return domain.Profile{
					ID:               id,
					FullName:         reg.FullName,
					VehiclePlate:     reg.VehiclePlate,
					ConsentGiven:     true,
					ConsentTimestamp: &now,
				}, nil
			},
		},
		&mockTripStore{},
	)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/consent",
		`{"full_name":"Maha Al Rashid","vehicle_plate":"D-99881"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, id, profile.ID)
	assert.True(t, profile.ConsentGiven)
}

func TestRegisterConsent_MissingName(t *testing.T) {
	h := newServer(
		&mockEngine{},
		&mockConsents{
			registerWithConsent: func(_ context.Context, _ consent.Registration) (domain.Profile, error) {
				return domain.Profile{}, fmt.Errorf("consent.Service.RegisterWithConsent: %w: driver name is required", domain.ErrValidation)
			},
		},
		&mockTripStore{},
	)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/consent", `{"vehicle_plate":"D-99881"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestRegisterConsent_InvalidBody(t *testing.T) {
	h := newServer(&mockEngine{}, &mockConsents{}, &mockTripStore{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/consent", `{not json`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGrantConsent_OK(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	h := newServer(
		&mockEngine{},
		&mockConsents{
			grant: func(_ context.Context, got uuid.UUID) (domain.Profile, error) {
				assert.Equal(t, id, got)
				return domain.Profile{ID: id, ConsentGiven: true, ConsentTimestamp: &now}, nil
			},
		},
		&mockTripStore{},
	)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/consent/"+id.String()+"/grant", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.True(t, profile.ConsentGiven)
}

func TestGrantConsent_UnknownDriver(t *testing.T) {
	h := newServer(
		&mockEngine{},
		&mockConsents{
			grant: func(_ context.Context, _ uuid.UUID) (domain.Profile, error) {
				return domain.Profile{}, domain.ErrNotFound
			},
		},
		&mockTripStore{},
	)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/consent/"+uuid.NewString()+"/grant", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevokeConsent_OK(t *testing.T) {
	id := uuid.New()

	h := newServer(
		&mockEngine{},
		&mockConsents{
			revoke: func(_ context.Context, got uuid.UUID) (domain.Profile, error) {
				assert.Equal(t, id, got)
				return domain.Profile{ID: id, ConsentGiven: false}, nil
			},
		},
		&mockTripStore{},
	)

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/consent/"+id.String(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.False(t, profile.ConsentGiven)
}

func TestRevokeConsent_InvalidID(t *testing.T) {
	h := newServer(&mockEngine{}, &mockConsents{}, &mockTripStore{})

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/consent/not-a-uuid", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
