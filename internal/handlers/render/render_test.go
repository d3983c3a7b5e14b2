package render

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.HandlerFunc, body string) (*http.Response, string) {
	t.Helper()

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	return resp, string(raw)
}

func TestRender_JSON(t *testing.T) {
	resp, body := get(t, func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, map[string]any{"key1": 1, "key2": "222"}, "fetched")
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"statusCode": 200,
		"data": {"key1": 1, "key2": "222"},
		"message": "fetched",
		"success": true
	}`, body)
}

func TestRender_JSONWithStatus(t *testing.T) {
	resp, body := get(t, func(w http.ResponseWriter, _ *http.Request) {
		JSONWithStatus(w, []int{1}, "created", http.StatusCreated)
	}, "")

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"statusCode": 201, "data": [1], "message": "created", "success": true}`, body)
}

func TestRender_Error(t *testing.T) {
	resp, body := get(t, func(w http.ResponseWriter, _ *http.Request) {
		Error(w, "something terrible happened", http.StatusForbidden)
	}, "")

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{
		"statusCode": 403,
		"data": null,
		"message": "something terrible happened",
		"success": false
	}`, body)
}

func TestRender_DecodeError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		value := struct {
			Key      string `json:"key"`
			Duration int    `json:"duration"`
		}{}

		err := json.NewDecoder(r.Body).Decode(&value)
		require.Error(t, err, "Please check what JSON was sent. Test expected that it is invalid")
		DecodeError(w, err)
	}

	tests := []struct {
		name        string
		requestBody string
		message     string
	}{
		{
			name:        "json parsing error",
			requestBody: `invalid-json`,
			message:     "Failed to parse JSON: invalid character 'i' looking for beginning of value",
		},
		{
			name:        "invalid type ok",
			requestBody: `{"key": "valid_json", "duration": "but incorrect type"}`,
			message:     "Invalid data type for field 'duration'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, handler, tc.requestBody)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(body), &env))
			assert.Equal(t, tc.message, env.Message)
			assert.False(t, env.Success)
			assert.Equal(t, http.StatusBadRequest, env.StatusCode)
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	validate := validator.New()

	type T struct {
		Username string `validate:"required"`
		Password string `validate:"min=6"`
		Email    string `validate:"email"`
		Title    string `validate:"max=3"`
	}

	resp, body := get(t, func(w http.ResponseWriter, _ *http.Request) {
		err := validate.Struct(T{Password: "123", Email: "not-valid-email", Title: "long"})
		require.Error(t, err, "test expects that data not pass validation")
		errs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "be sure you pass structure to validator")
		ValidationErrors(w, errs)
	}, "")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{
		"statusCode": 400,
		"data": null,
		"message": "Request validation failed",
		"success": false,
		"errors": {
			"Username": "This field is required",
			"Password": "Value is too short (minimum 6)",
			"Email": "Invalid email",
			"Title": "Value is too long (maximum 3)"
		}
	}`, body)
}

func TestRender_BindAndValidate(t *testing.T) {
	type Login struct {
		Username string `json:"username" validate:"notblank"`
		Password string `json:"password" validate:"required"`
	}

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedErrors map[string]string
	}{
		{
			name:           "valid request",
			requestBody:    `{"username": "john", "password": "pwd"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid json",
			requestBody:    `invalid-json`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "validation failed",
			requestBody:    `{"username": "   "}`,
			expectedStatus: http.StatusBadRequest,
			expectedErrors: map[string]string{
				"username": "This field is required",
				"password": "This field is required",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, func(w http.ResponseWriter, r *http.Request) {
				value, err := BindAndValidate[Login](w, r)
				if err != nil {
					return // Error response already written
				}
				JSON(w, value.Username, "ok")
			}, tc.requestBody)

			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(body), &env))
			assert.Equal(t, tc.expectedErrors, env.Errors)
			if tc.expectedStatus == http.StatusOK {
				assert.Equal(t, "john", env.Data)
			}
		})
	}
}
