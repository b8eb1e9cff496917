package handler

import (
	"context"

	"binkeeper"
	m "binkeeper/internal/model"
)

type KeeperServiceMock struct {
	status  binkeeper.Status
	inRange map[m.PositionID]bool
	err     error
}

func (mock *KeeperServiceMock) Snapshot() binkeeper.Status {
	return mock.status
}

func (mock *KeeperServiceMock) InRange(ctx context.Context, id m.PositionID) (bool, error) {
	if mock.err != nil {
		return false, mock.err
	}
	return mock.inRange[id], nil
}

type ActivityRetrieverMock struct {
	acts  []m.Activity
	limit int
	err   error
}

func (mock *ActivityRetrieverMock) RecentActivities(n int) ([]m.Activity, error) {
	mock.limit = n
	if mock.err != nil {
		return nil, mock.err
	}
	return mock.acts, nil
}
