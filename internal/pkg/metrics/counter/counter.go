package counter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/cache"
	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	eventsReceivedKey     = "pipeline:counters:events_received"
	eventsDuplicateKey    = "pipeline:counters:events_duplicate"
	commissionsCreatedKey = "pipeline:counters:commissions_created"
)

// AddEventReceived increments the pending received-event counter in Redis
func AddEventReceived() error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, eventsReceivedKey, today(), 1).Err()
}

// AddEventDuplicate increments the pending duplicate-delivery counter in Redis
func AddEventDuplicate() error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, eventsDuplicateKey, today(), 1).Err()
}

// AddCommissionsCreated increments the pending created-commission counter in Redis
func AddCommissionsCreated(n int) error {
	if n <= 0 {
		return nil
	}
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, commissionsCreatedKey, today(), int64(n)).Err()
}

// FlushAll flushes all pipeline counters to the daily stats table
func FlushAll() error {
	if err := flushHashToColumn(eventsReceivedKey, "events_received"); err != nil {
		return err
	}
	if err := flushHashToColumn(eventsDuplicateKey, "events_duplicate"); err != nil {
		return err
	}
	return flushHashToColumn(commissionsCreatedKey, "commissions_created")
}

// flushHashToColumn drains a Redis hash atomically and applies batched
// increments to pipeline_daily_stats. Uses RENAME to a temporary key for
// atomic drain without losing in-flight increments.
func flushHashToColumn(redisKey, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	db := database.GetDB()
	for date, raw := range data {
		var inc int64
		if _, err := fmt.Sscanf(raw, "%d", &inc); err != nil || inc == 0 {
			continue
		}

		row := &models.PipelineDailyStat{StatDate: date}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stat_date"}},
			DoNothing: true,
		}).Create(row).Error; err != nil {
			return err
		}
		if err := db.Model(&models.PipelineDailyStat{}).
			Where("stat_date = ?", date).
			UpdateColumn(column, gorm.Expr(fmt.Sprintf("%s + ?", column), inc)).Error; err != nil {
			return err
		}
	}
	return nil
}

func today() string {
	return time.Now().Format("2006-01-02")
}
