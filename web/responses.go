package web

import (
	"github.com/mww/global_leaderboard/controller"
	"github.com/mww/global_leaderboard/model"
)

type leaderboardResponse struct {
	ID               int64  `json:"id"`
	Date             string `json:"date"`
	UserCount        int    `json:"userCount"`
	InstitutionCount int    `json:"institutionCount"`
	Published        bool   `json:"published"`
}

type userPositionResponse struct {
	UserID                int64  `json:"userId"`
	InstitutionID         *int64 `json:"institutionId"`
	Rank                  int    `json:"rank"`
	InstitutionMemberRank *int   `json:"institutionMemberRank"`
	Points                int64  `json:"points"`
	BestRank              int    `json:"bestRank"`
	ParticipationCount    int    `json:"participationCount"`
	SubmissionCount       int    `json:"submissionCount"`
}

type institutionPositionResponse struct {
	InstitutionID        int64   `json:"institutionId"`
	Rank                 int     `json:"rank"`
	TotalPoints          int64   `json:"totalPoints"`
	UserCount            int     `json:"userCount"`
	TopUserIDs           []int64 `json:"topUserIds"`
	AveragePointsPerUser int64   `json:"averagePointsPerUser"`
}

type participationResponse struct {
	InstitutionID           int64  `json:"institutionId"`
	CompetitionID           int64  `json:"competitionId"`
	BestUserID              *int64 `json:"bestUserId"`
	BestUserLeaderboardRank *int   `json:"bestUserLeaderboardRank"`
	MemberCount             int    `json:"memberCount"`
	TotalPoints             int64  `json:"totalPoints"`
}

type snapshotResponse struct {
	Leaderboard    leaderboardResponse           `json:"leaderboard"`
	Users          []userPositionResponse        `json:"users"`
	Institutions   []institutionPositionResponse `json:"institutions"`
	Participations []participationResponse       `json:"participations"`
}

type summaryResponse struct {
	Dates                   []string              `json:"dates"`
	UserCount               int                   `json:"userCount"`
	EventCount              int                   `json:"eventCount"`
	CreatedInstitutionCount int                   `json:"createdInstitutionCount"`
	Leaderboards            []leaderboardResponse `json:"leaderboards"`
	Duration                string                `json:"duration"`
}

func toLeaderboardResponse(l *model.GlobalLeaderboard) leaderboardResponse {
	return leaderboardResponse{
		ID:               l.ID,
		Date:             dateFormatter(l.Date),
		UserCount:        l.UserCount,
		InstitutionCount: l.InstitutionCount,
		Published:        l.Published,
	}
}

func toLeaderboardResponses(leaderboards []model.GlobalLeaderboard) []leaderboardResponse {
	res := make([]leaderboardResponse, 0, len(leaderboards))
	for i := range leaderboards {
		res = append(res, toLeaderboardResponse(&leaderboards[i]))
	}
	return res
}

func toSnapshotResponse(s *model.GlobalLeaderboardSnapshot) *snapshotResponse {
	res := &snapshotResponse{
		Leaderboard:    toLeaderboardResponse(&s.Leaderboard),
		Users:          make([]userPositionResponse, 0, len(s.Users)),
		Institutions:   make([]institutionPositionResponse, 0, len(s.Institutions)),
		Participations: make([]participationResponse, 0, len(s.Participations)),
	}

	for _, u := range s.Users {
		res.Users = append(res.Users, userPositionResponse{
			UserID:                u.UserID,
			InstitutionID:         u.InstitutionID,
			Rank:                  u.Rank,
			InstitutionMemberRank: u.InstitutionMemberRank,
			Points:                u.Points,
			BestRank:              u.BestRank,
			ParticipationCount:    u.ParticipationCount,
			SubmissionCount:       u.SubmissionCount,
		})
	}

	for _, i := range s.Institutions {
		top := make([]int64, 0, 3)
		for _, id := range []*int64{i.TopUser1ID, i.TopUser2ID, i.TopUser3ID} {
			if id != nil {
				top = append(top, *id)
			}
		}
		res.Institutions = append(res.Institutions, institutionPositionResponse{
			InstitutionID:        i.InstitutionID,
			Rank:                 i.Rank,
			TotalPoints:          i.TotalPoints,
			UserCount:            i.UserCount,
			TopUserIDs:           top,
			AveragePointsPerUser: i.AveragePointsPerUser,
		})
	}

	for _, p := range s.Participations {
		res.Participations = append(res.Participations, participationResponse{
			InstitutionID:           p.InstitutionID,
			CompetitionID:           p.CompetitionID,
			BestUserID:              p.BestUserID,
			BestUserLeaderboardRank: p.BestUserLeaderboardRank,
			MemberCount:             p.MemberCount,
			TotalPoints:             p.TotalPoints,
		})
	}
	return res
}

func toSummaryResponse(s *controller.RunSummary) *summaryResponse {
	dates := make([]string, 0, len(s.Dates))
	for _, d := range s.Dates {
		dates = append(dates, dateFormatter(d))
	}
	return &summaryResponse{
		Dates:                   dates,
		UserCount:               s.UserCount,
		EventCount:              s.EventCount,
		CreatedInstitutionCount: s.CreatedInstitutionCount,
		Leaderboards:            toLeaderboardResponses(s.Leaderboards),
		Duration:                s.Duration.String(),
	}
}
