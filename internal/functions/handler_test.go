package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkesia/alkesia/internal/rbac"
)

func newTestHandler(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r, nil)
	return r
}

func asSubject(req *http.Request, subj *rbac.Subject) *http.Request {
	return req.WithContext(rbac.ContextWithSubject(context.Background(), subj))
}

func postJSON(t *testing.T, h http.Handler, path string, body any, subj *rbac.Subject) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if subj != nil {
		req = asSubject(req, subj)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func adminActor() *rbac.Subject {
	return &rbac.Subject{UserID: "actor-1", Role: rbac.RoleSuperAdmin, Active: true}
}

func TestPreflightAnswersEmpty200WithCORS(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, ""))

	for _, path := range []string{"/create-user", "/promote-super-admin"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"), path)
	}
}

func TestCreateUserRejectsCallerWithoutPermission(t *testing.T) {
	ids := newStubIdentities()
	h := newTestHandler(t, NewService(nil, ids, newStubProfiles(), nil, ""))

	operator := &rbac.Subject{UserID: "op-1", Role: rbac.RoleOperatorKlien, TenantID: "t-1", Active: true}
	rec := postJSON(t, h, "/create-user", validCreateRequest(), operator)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(KindUnauthorized), env.Message)
	assert.Zero(t, ids.count())
}

func TestCreateUserRejectsAnonymousCaller(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, ""))

	rec := postJSON(t, h, "/create-user", validCreateRequest(), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(KindUnauthorized), env.Message)
}

func TestCreateUserEnvelopeOnSuccess(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, ""))

	rec := postJSON(t, h, "/create-user", validCreateRequest(), adminActor())

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotNil(t, env.Data)
}

func TestCreateUserEnvelopeOnValidationError(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, ""))

	req := validCreateRequest()
	req.Email = ""
	rec := postJSON(t, h, "/create-user", req, adminActor())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(KindValidation), env.Message)
	assert.NotEmpty(t, env.Error)
}

func TestCreateUserEnvelopeOnMalformedBody(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, ""))

	req := httptest.NewRequest(http.MethodPost, "/create-user", bytes.NewReader([]byte("{not json")))
	req = asSubject(req, adminActor())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(KindValidation), env.Message)
}

func TestPromoteEnvelope(t *testing.T) {
	h := newTestHandler(t, NewService(nil, newStubIdentities(), newStubProfiles(), nil, "owner@alkesia.example"))

	rec := postJSON(t, h, "/promote-super-admin", promoteRequest{UserID: "u-1", Email: "owner@alkesia.example"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	rec = postJSON(t, h, "/promote-super-admin", promoteRequest{UserID: "u-2", Email: "other@alkesia.example"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, string(KindUnauthorized), env.Message)
}
