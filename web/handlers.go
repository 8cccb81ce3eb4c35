package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mww/global_leaderboard/controller"
	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/unrolled/render"
)

// Longest range a single request may recompute.
const maxComputeDays = 366

type errorResponse struct {
	Error string `json:"error"`
}

func rootHandler(_ controller.C, render *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Text(w, http.StatusOK, "global leaderboard")
	}
}

func listLeaderboardsHandler(ctrl controller.C, render *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaderboards, err := ctrl.ListGlobalLeaderboards(r.Context())
		if err != nil {
			render.JSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
			return
		}

		render.JSON(w, http.StatusOK, toLeaderboardResponses(leaderboards))
	}
}

func getLeaderboardHandler(ctrl controller.C, render *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := model.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			render.JSON(w, http.StatusBadRequest, errorResponse{err.Error()})
			return
		}

		s, err := ctrl.GetGlobalLeaderboard(r.Context(), date)
		if err != nil {
			if errors.Is(err, db.ErrGlobalLeaderboardNotFound) {
				render.JSON(w, http.StatusNotFound, errorResponse{fmt.Sprintf("no leaderboard for %s", dateFormatter(date))})
			} else {
				render.JSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
			}
			return
		}

		render.JSON(w, http.StatusOK, toSnapshotResponse(s))
	}
}

// computeHandler recomputes the leaderboards of every day from the `from`
// query parameter to the `to` one, both included. `to` defaults to `from`.
func computeHandler(ctrl controller.C, render *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") == "" {
			render.JSON(w, http.StatusBadRequest, errorResponse{"the from parameter is required"})
			return
		}

		from, err := model.ParseDate(q.Get("from"))
		if err != nil {
			render.JSON(w, http.StatusBadRequest, errorResponse{err.Error()})
			return
		}

		to := from
		if q.Get("to") != "" {
			to, err = model.ParseDate(q.Get("to"))
			if err != nil {
				render.JSON(w, http.StatusBadRequest, errorResponse{err.Error()})
				return
			}
		}

		if to.Before(from) {
			render.JSON(w, http.StatusBadRequest, errorResponse{"to must not be before from"})
			return
		}
		dates := model.DailyDateRange(from, to)
		if len(dates) > maxComputeDays {
			render.JSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("at most %d days can be computed at once", maxComputeDays)})
			return
		}

		summary, err := ctrl.ComputeLeaderboards(r.Context(), dates)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				render.JSON(w, http.StatusConflict, errorResponse{err.Error()})
			} else {
				render.JSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
			}
			return
		}

		render.JSON(w, http.StatusOK, toSummaryResponse(summary))
	}
}
