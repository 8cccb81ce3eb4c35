package mockenrich

import (
	"context"

	"github.com/mww/global_leaderboard/model"
	"github.com/stretchr/testify/mock"
)

type Client struct {
	mock.Mock
}

func (c *Client) Describe(ctx context.Context, universities map[string]model.University) map[string]*string {
	args := c.Called(ctx, universities)

	var res map[string]*string
	if args.Get(0) != nil {
		res = args.Get(0).(map[string]*string)
	}
	return res
}

type Rephraser struct {
	mock.Mock
}

func (r *Rephraser) Rephrase(ctx context.Context, u *model.University, description string) (*string, error) {
	args := r.Called(ctx, u, description)

	var res *string
	if args.Get(0) != nil {
		res = args.Get(0).(*string)
	}
	return res, args.Error(1)
}
