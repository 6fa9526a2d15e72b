package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/inkday/internal/apperr"
	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/diaryservice"
)

// fakeDiary embeds the interface so only the methods a test needs are
// implemented; any other call panics.
type fakeDiary struct {
	DiaryService
	loadErr   error
	saveErr   error
	deleteErr error
	saved     diaryservice.SaveRequest
}

func (f *fakeDiary) Load(context.Context) (*diaryservice.LoadResult, error) {
	return nil, f.loadErr
}

func (f *fakeDiary) Save(_ context.Context, req diaryservice.SaveRequest) (*diaryservice.SaveResult, error) {
	f.saved = req
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &diaryservice.SaveResult{LastSavedTimestamp: "1", Days: len(req.Calendar), ETag: `"abc"`}, nil
}

func (f *fakeDiary) DeleteDay(context.Context, diary.DateKey) error {
	return f.deleteErr
}

func TestHandlers_ServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		fake   *fakeDiary
		method string
		target string
		body   string
		want   int
	}{
		{"load failure", &fakeDiary{loadErr: errors.New("disk gone")}, http.MethodGet, "/load", "", http.StatusInternalServerError},
		{"save conflict", &fakeDiary{saveErr: apperr.ErrConflict}, http.MethodPost, "/save", `{}`, http.StatusConflict},
		{"save failure", &fakeDiary{saveErr: errors.New("boom")}, http.MethodPost, "/save", `{}`, http.StatusInternalServerError},
		{"delete missing", &fakeDiary{deleteErr: apperr.ErrNotFound}, http.MethodDelete, "/days/0_1_2024", "", http.StatusNotFound},
		{"delete ok", &fakeDiary{}, http.MethodDelete, "/days/0_1_2024", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(tc.fake, false, "", nil)
			w := do(t, router, tc.method, tc.target, []byte(tc.body))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestSave_PassesIfMatchAndETag(t *testing.T) {
	fake := &fakeDiary{}
	router := NewRouter(fake, false, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(`{"0_1_2024":[{"text":"a"}],"lastSavedTimestamp":"7"}`))
	req.Header.Set("If-Match", `"prev"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fake.saved.IfMatch != `"prev"` || fake.saved.LastSavedTimestamp != "7" || len(fake.saved.Calendar) != 1 {
		t.Errorf("save request = %+v", fake.saved)
	}
	if w.Header().Get("ETag") != `"abc"` {
		t.Errorf("ETag = %q", w.Header().Get("ETag"))
	}
}
