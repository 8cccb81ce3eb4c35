package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mww/global_leaderboard/controller"
	"github.com/mww/global_leaderboard/controller/mockcontroller"
	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/enrich"
	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
	"github.com/mww/global_leaderboard/testutils"
	"github.com/stretchr/testify/mock"
)

var testAdmin = Admin{User: "admin", Password: "pa55word"}

func serve(ctrl controller.C, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	getRouter(ctrl, newRender(), testAdmin).ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T {
	return &v
}

func TestListLeaderboardsHandler(t *testing.T) {
	ctrl := &mockcontroller.C{}
	ctrl.On("ListGlobalLeaderboards", mock.Anything).Return([]model.GlobalLeaderboard{
		{ID: 2, Date: testutils.Day("2024-03-02"), UserCount: 10, InstitutionCount: 2},
		{ID: 1, Date: testutils.Day("2024-03-01"), UserCount: 9, InstitutionCount: 1},
	}, nil)

	w := serve(ctrl, httptest.NewRequest(http.MethodGet, "/leaderboards", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status code. Got: %d", w.Code)
	}

	var got []leaderboardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	expected := []leaderboardResponse{
		{ID: 2, Date: "2024-03-02", UserCount: 10, InstitutionCount: 2},
		{ID: 1, Date: "2024-03-01", UserCount: 9, InstitutionCount: 1},
	}
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("response not as expected. wanted: %+v, got: %+v", expected, got)
	}

	ctrl.AssertExpectations(t)
}

func TestGetLeaderboardHandler(t *testing.T) {
	snapshot := &model.GlobalLeaderboardSnapshot{
		Leaderboard: model.GlobalLeaderboard{ID: 7, Date: testutils.CrunchEnd, UserCount: 2, InstitutionCount: 1},
		Users: []model.GlobalUserPosition{
			{UserID: 1, InstitutionID: ptr(int64(3)), Rank: 1, InstitutionMemberRank: ptr(1), Points: 24, BestRank: 1, ParticipationCount: 1, SubmissionCount: 3},
			{UserID: 2, Rank: 2, Points: 12, BestRank: 2},
		},
		Institutions: []model.GlobalInstitutionPosition{
			{InstitutionID: 3, Rank: 1, TotalPoints: 24, UserCount: 1, TopUser1ID: ptr(int64(1)), AveragePointsPerUser: 24},
		},
		Participations: []model.InstitutionParticipation{
			{InstitutionID: 3, CompetitionID: 1, BestUserID: ptr(int64(1)), BestUserLeaderboardRank: ptr(1), MemberCount: 1, TotalPoints: 24},
		},
	}

	tests := map[string]struct {
		path         string
		snapshot     *model.GlobalLeaderboardSnapshot
		err          error
		expectedCode int
	}{
		"found": {
			path:         "/leaderboards/2024-03-01",
			snapshot:     snapshot,
			expectedCode: http.StatusOK,
		},
		"not found": {
			path:         "/leaderboards/2024-03-01",
			err:          fmt.Errorf("wrapped: %w", db.ErrGlobalLeaderboardNotFound),
			expectedCode: http.StatusNotFound,
		},
		"db error": {
			path:         "/leaderboards/2024-03-01",
			err:          errors.New("connection refused"),
			expectedCode: http.StatusInternalServerError,
		},
		"invalid date": {
			path:         "/leaderboards/2024-13-01",
			expectedCode: http.StatusBadRequest,
		},
		"not a date": {
			path:         "/leaderboards/latest",
			expectedCode: http.StatusNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := &mockcontroller.C{}
			ctrl.On("GetGlobalLeaderboard", mock.Anything, testutils.CrunchEnd).Return(tc.snapshot, tc.err)

			w := serve(ctrl, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != tc.expectedCode {
				t.Fatalf("unexpected status code. wanted: %d, got: %d", tc.expectedCode, w.Code)
			}
			if tc.expectedCode != http.StatusOK {
				return
			}

			var got snapshotResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("error decoding response: %v", err)
			}
			if !reflect.DeepEqual(toSnapshotResponse(snapshot), &got) {
				t.Errorf("response not as expected. wanted: %+v, got: %+v", toSnapshotResponse(snapshot), got)
			}
			if !reflect.DeepEqual([]int64{1}, got.Institutions[0].TopUserIDs) {
				t.Errorf("unexpected top users: %v", got.Institutions[0].TopUserIDs)
			}
		})
	}
}

func TestComputeHandler(t *testing.T) {
	summary := &controller.RunSummary{
		Dates:        []time.Time{testutils.Day("2024-03-01"), testutils.Day("2024-03-02")},
		UserCount:    3,
		EventCount:   4,
		Leaderboards: []model.GlobalLeaderboard{{ID: 1, Date: testutils.Day("2024-03-01")}, {ID: 2, Date: testutils.Day("2024-03-02")}},
		Duration:     2 * time.Second,
	}

	tests := map[string]struct {
		query         string
		noAuth        bool
		expectedDates []time.Time
		err           error
		expectedCode  int
	}{
		"range": {
			query:         "from=2024-03-01&to=2024-03-02",
			expectedDates: []time.Time{testutils.Day("2024-03-01"), testutils.Day("2024-03-02")},
			expectedCode:  http.StatusOK,
		},
		"single day": {
			query:         "from=2024-03-01",
			expectedDates: []time.Time{testutils.Day("2024-03-01")},
			expectedCode:  http.StatusOK,
		},
		"locked": {
			query:         "from=2024-03-01",
			expectedDates: []time.Time{testutils.Day("2024-03-01")},
			err:           fmt.Errorf("error acquiring run lock: %w", lock.ErrLocked),
			expectedCode:  http.StatusConflict,
		},
		"failed": {
			query:         "from=2024-03-01",
			expectedDates: []time.Time{testutils.Day("2024-03-01")},
			err:           errors.New("rank 5 is outside leaderboard"),
			expectedCode:  http.StatusInternalServerError,
		},
		"missing from":  {query: "to=2024-03-01", expectedCode: http.StatusBadRequest},
		"invalid from":  {query: "from=yesterday", expectedCode: http.StatusBadRequest},
		"invalid to":    {query: "from=2024-03-01&to=03/02/2024", expectedCode: http.StatusBadRequest},
		"to before":     {query: "from=2024-03-02&to=2024-03-01", expectedCode: http.StatusBadRequest},
		"too many days": {query: "from=2020-01-01&to=2024-01-01", expectedCode: http.StatusBadRequest},
		"no auth":       {query: "from=2024-03-01", noAuth: true, expectedCode: http.StatusUnauthorized},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := &mockcontroller.C{}
			if tc.expectedDates != nil {
				var s *controller.RunSummary
				if tc.err == nil {
					s = summary
				}
				ctrl.On("ComputeLeaderboards", mock.Anything, tc.expectedDates).Return(s, tc.err)
			}

			req := httptest.NewRequest(http.MethodPost, "/admin/compute?"+tc.query, nil)
			if !tc.noAuth {
				req.SetBasicAuth(testAdmin.User, testAdmin.Password)
			}

			w := serve(ctrl, req)
			if w.Code != tc.expectedCode {
				t.Fatalf("unexpected status code. wanted: %d, got: %d (%s)", tc.expectedCode, w.Code, w.Body.String())
			}

			if tc.expectedCode == http.StatusOK {
				var got summaryResponse
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("error decoding response: %v", err)
				}
				if !reflect.DeepEqual(toSummaryResponse(summary), &got) {
					t.Errorf("response not as expected. wanted: %+v, got: %+v", toSummaryResponse(summary), got)
				}
				ctrl.AssertExpectations(t)
			} else if tc.expectedDates == nil {
				ctrl.AssertNotCalled(t, "ComputeLeaderboards", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAdminRoutesDisabledWithoutPassword(t *testing.T) {
	ctrl := &mockcontroller.C{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/compute?from=2024-03-01", nil)
	getRouter(ctrl, newRender(), Admin{}).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unexpected status code. Got: %d", w.Code)
	}
	ctrl.AssertNotCalled(t, "ComputeLeaderboards", mock.Anything, mock.Anything)
}

// Runs a real computation through the routes.
func TestComputeAndGetLeaderboard(t *testing.T) {
	tdb := testutils.NewTestDB("")
	ctrl, err := controller.New(tdb.Clock, tdb.DB, enrich.NewNop(), lock.NewLocal(), scoring.NewScorer(scoring.DefaultParameters(), nil))
	if err != nil {
		t.Fatalf("error creating controller: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/compute?from=2024-03-01", nil)
	req.SetBasicAuth(testAdmin.User, testAdmin.Password)
	if w := serve(ctrl, req); w.Code != http.StatusOK {
		t.Fatalf("unexpected status code computing. Got: %d (%s)", w.Code, w.Body.String())
	}

	w := serve(ctrl, httptest.NewRequest(http.MethodGet, "/leaderboards/2024-03-01", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status code. Got: %d", w.Code)
	}

	var got snapshotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	if len(got.Users) != 2 || got.Users[0].UserID != testutils.AliceID || got.Users[0].Points != 24 {
		t.Errorf("unexpected users: %+v", got.Users)
	}

	if _, err := ctrl.GetGlobalLeaderboard(context.Background(), testutils.Day("2024-03-02")); !errors.Is(err, db.ErrGlobalLeaderboardNotFound) {
		t.Errorf("expected no leaderboard for 2024-03-02, got: %v", err)
	}

	w = serve(ctrl, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(w.Body.String(), "leaderboard") {
		t.Errorf("unexpected root page: %s", w.Body.String())
	}
}
