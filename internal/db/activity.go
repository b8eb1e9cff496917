package db

import (
	"errors"

	m "binkeeper/internal/model"
)

type Activity = m.Activity

var ErrNoCache = errors.New("status cache not configured")

func (s Storage) SaveActivity(act *m.Activity) error {
	if s.db == nil {
		return nil
	}

	result := s.db.Create(act)
	if result.Error != nil {
		return result.Error
	}

	s.lg.Debug().Uint("id", act.ID).Str("kind", string(act.Kind)).Msg("activity saved")
	return nil
}

// RecentActivities returns the latest n activities, newest first.
func (s Storage) RecentActivities(n int) ([]m.Activity, error) {
	if s.db == nil {
		return []m.Activity{}, nil
	}
	if n <= 0 {
		n = 20
	}

	var acts []m.Activity
	result := s.db.Model(&m.Activity{}).Order("id desc").Limit(n).Find(&acts)
	if result.Error != nil {
		return nil, result.Error
	}
	return acts, nil
}
