package handler_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
)

type analysisEnvelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    dto.AnalysisResponse `json:"data"`
}

func TestAnalysisHandler_RejectsIncompleteConfiguration(t *testing.T) {
	grader := &graderStub{}
	env := newTestEnv(t, grader)
	id := env.createSession(t)
	base := "/api/v1/grading/sessions/" + id

	resp := env.do(t, http.MethodGet, base+"/request", nil, "")
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, http.MethodPost, base+"/analyze", nil, "")
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Zero(t, grader.calls)
}

func TestAnalysisHandler_PreviewAndAnalyze(t *testing.T) {
	grader := &graderStub{}
	env := newTestEnv(t, grader)
	id := env.createSession(t)
	base := "/api/v1/grading/sessions/" + id

	body, contentType := multipartBody(t, "files", map[string][]byte{"essay.txt": []byte("An essay.")})
	resp := env.do(t, http.MethodPost, base+"/papers", body, contentType)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	value := 0.8
	resp = env.doJSON(t, http.MethodPut, base+"/thresholds/relevance", dto.CriterionUpdateRequest{Value: &value})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, base+"/request", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var preview struct {
		Success bool                  `json:"success"`
		Data    gradingconfig.Request `json:"data"`
	}
	decodeResponse(t, resp, &preview)
	require.Len(t, preview.Data.Papers, 1)
	require.Equal(t, 0.8, preview.Data.Thresholds.Get(gradingconfig.SectionRelevance))

	resp = env.do(t, http.MethodPost, base+"/analyze", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var envelope analysisEnvelope
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, id, envelope.Data.SessionID)
	require.Len(t, envelope.Data.Result.Papers, 1)
	require.Equal(t, "essay.txt", envelope.Data.Result.Papers[0].Name)
	require.Equal(t, 1, envelope.Data.Request.PaperCount)
	require.Equal(t, 1, grader.calls)

	resp = env.do(t, http.MethodGet, base+"/analyses?limit=5", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, base+"/analyses?limit=x", nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAnalysisHandler_GraderErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	base := "/api/v1/grading/sessions/" + id

	resp := env.doJSON(t, http.MethodPut, base+"/rubric/text", dto.TextUpdateRequest{Text: "Rubric"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, base+"/analyze", nil, "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	failing := newTestEnv(t, &graderStub{err: errors.New("upstream timeout")})
	id = failing.createSession(t)
	base = "/api/v1/grading/sessions/" + id
	resp = failing.doJSON(t, http.MethodPut, base+"/papers/text", dto.TextUpdateRequest{Text: "Essay"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = failing.do(t, http.MethodPost, base+"/analyze", nil, "")
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestAnalysisHandler_UnknownSession(t *testing.T) {
	env := newTestEnv(t, &graderStub{})

	resp := env.do(t, http.MethodPost, "/api/v1/grading/sessions/missing/analyze", nil, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/grading/sessions/missing/analyses", nil, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
