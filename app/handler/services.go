package handler

import (
	"context"

	"binkeeper"
	m "binkeeper/internal/model"
)

type KeeperService interface {
	Snapshot() binkeeper.Status
	InRange(ctx context.Context, id m.PositionID) (bool, error)
}

type ActivityRetriever interface {
	RecentActivities(n int) ([]m.Activity, error)
}
