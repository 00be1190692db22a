package metric

import (
	"context"
	"time"

	"emailtoics/src-server/model"
	"emailtoics/src-server/utils"
)

func databaseLatency(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	if _, err := as.BunDB.NewSelect().
		Model((*model.PendingInvite)(nil)).
		Where("token = ?", "").
		Exists(context.Background()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func pendingInvites(as *utils.AppState) (int, error) {
	return model.CountPendingInvites(context.Background(), as.BunDB)
}
