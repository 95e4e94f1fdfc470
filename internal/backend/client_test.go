package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL + "/api",
		Token:          "secret",
		CoursePageSize: 2,
		RateLimit:      1000,
		RateBurst:      100,
	})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestCampuses_BareArrayAndNumericIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/campuses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id": 7, "name": " Main Campus ", "code": "MC", "location": "Kampala"},
		               {"id": "c-2", "name": "Mbarara Campus", "code": "MBR", "location": "Mbarara"}]`)
	})

	c := newTestClient(t, mux)
	got, err := c.Campuses(context.Background())
	require.NoError(t, err)

	want := []roster.Campus{
		{ID: "7", Name: "Main Campus", Code: "MC", Location: "Kampala"},
		{ID: "c-2", Name: "Mbarara Campus", Code: "MBR", Location: "Mbarara"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Campuses() mismatch (-want +got):\n%s", diff)
	}
}

func TestCourses_FollowsTotalPages(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		var data []map[string]any
		switch page {
		case 1:
			data = []map[string]any{
				{"id": "k1", "code": "BCS", "campusId": "c1"},
				{"id": "k2", "code": "BBA", "campus": map[string]any{"id": 1}},
			}
		case 2:
			data = []map[string]any{{"id": "k3", "code": "DIT", "campusId": "c2"}}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data, "totalPages": 2})
	})

	c := newTestClient(t, mux)
	got, err := c.Courses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[1].CampusID, "nested campus id is used when campusId is absent")
	assert.Equal(t, "DIT", got[2].Code)
}

func TestCourses_ShortPageEndsWithoutTotalPages(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			fmt.Fprint(w, `{"data":[{"id":"a","code":"A","campusId":"c"},{"id":"b","code":"B","campusId":"c"}]}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"c","code":"C","campusId":"c"}]}`)
	})

	c := newTestClient(t, mux)
	got, err := c.Courses(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCourses_BareArrayIsSinglePage(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"id":"a","code":"A","campusId":"c"},{"id":"b","code":"B","campusId":"c"}]`)
	})

	c := newTestClient(t, mux)
	got, err := c.Courses(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchReference(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/campuses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"c1","name":"Main Campus","code":"MC","location":"Kampala"}]`)
	})
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"k1","code":"BCS","campusId":"c1"}]`)
	})

	c := newTestClient(t, mux)
	rs, err := c.FetchReference(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs.Campuses, 1)
	assert.Len(t, rs.Courses, 1)
	assert.NotEmpty(t, rs.Version)

	again, err := c.FetchReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rs.Version, again.Version, "same data yields the same version")
}

func TestFetchReference_PropagatesFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/campuses", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	c := newTestClient(t, mux)
	_, err := c.FetchReference(context.Background())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, err.Error(), "backend returned 500")
}

func TestCreateStudents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/students/batch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var got []map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		require.Len(t, got, 2)
		assert.Equal(t, "Jane", got[0]["firstName"])
		assert.NotContains(t, got[0], "email", "empty optional fields are omitted")

		fmt.Fprint(w, `{"created":1,"skipped":1,"failed":0,
			"skippedDetails":[{"registrationNumber":"R2","reason":"Already exists"}]}`)
	})

	c := newTestClient(t, mux)
	resp, err := c.CreateStudents(context.Background(), []roster.StudentPayload{
		{FirstName: "Jane", LastName: "Doe", RegistrationNumber: "R1", YearOfEnrollment: 2023, CampusID: "c1", CourseID: "k1"},
		{FirstName: "John", LastName: "Roe", RegistrationNumber: "R2", YearOfEnrollment: 2023, CampusID: "c1", CourseID: "k1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, []roster.RowDetail{{RegistrationNumber: "R2", Reason: "Already exists"}}, resp.SkippedDetails)
	assert.Nil(t, resp.FailedDetails)
}

func TestDecodeBatchResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *roster.BatchResponse
	}{
		{
			name: "missing detail arrays",
			body: `{"created":3,"skipped":0,"failed":0}`,
			want: &roster.BatchResponse{Created: 3},
		},
		{
			name: "data envelope",
			body: `{"data":{"created":1,"failed":1,"failedDetails":[{"registrationNumber":"X","error":"bad course"}]}}`,
			want: &roster.BatchResponse{
				Created:       1,
				Failed:        1,
				FailedDetails: []roster.RowDetail{{RegistrationNumber: "X", Reason: "bad course"}},
			},
		},
		{
			name: "empty body",
			body: "  ",
			want: &roster.BatchResponse{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBatchResponse([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decodeBatchResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeList_Errors(t *testing.T) {
	var out []campusDTO
	_, err := decodeList([]byte(""), &out)
	assert.Error(t, err)

	_, err = decodeList([]byte(`{"data": 5}`), &out)
	assert.Error(t, err)
}
