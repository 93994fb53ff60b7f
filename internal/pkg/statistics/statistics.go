package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/cache"
	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
)

const (
	CacheKeyPaymentsTotal      = "statistics:payments:total"
	CacheKeyCommissionsTotal   = "statistics:commissions:total"
	CacheKeyCommissionsPending = "statistics:commissions:pending_cents"
	CacheKeyWithdrawalsPending = "statistics:withdrawals:pending"
	CacheKeyPaymentsErrored    = "statistics:payments:errored"
	CacheExpiration            = 30 * time.Minute
)

// StatisticsData holds the aggregates shown on the admin dashboard.
type StatisticsData struct {
	TotalPayments          int
	TotalCommissions       int
	PendingCommissionCents int64
	PendingWithdrawals     int
	ErroredPayments        int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cache is due for a refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has elapsed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all dashboard aggregates into the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalPayments int64
	if err := db.Model(&models.Payment{}).Count(&totalPayments).Error; err != nil {
		return err
	}

	var totalCommissions int64
	if err := db.Model(&models.Commission{}).Count(&totalCommissions).Error; err != nil {
		return err
	}

	var pendingCents int64
	if err := db.Model(&models.Commission{}).
		Where("status = ? AND withdrawal_id IS NULL", models.CommissionStatusPending).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&pendingCents).Error; err != nil {
		return err
	}

	var pendingWithdrawals int64
	if err := db.Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Count(&pendingWithdrawals).Error; err != nil {
		return err
	}

	var erroredPayments int64
	if err := db.Model(&models.Payment{}).
		Where("commission_processed = ? AND commission_error <> ''", false).
		Count(&erroredPayments).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyPaymentsTotal, int(totalPayments), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyCommissionsTotal, int(totalCommissions), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyCommissionsPending, strconv.FormatInt(pendingCents, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyWithdrawalsPending, int(pendingWithdrawals), CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyPaymentsErrored, int(erroredPayments), CacheExpiration)
}

// GetStatistics returns the cached aggregates, refreshing the cache first
// when it has gone stale.
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	data := StatisticsData{}
	if v, err := cache.GetInt(CacheKeyPaymentsTotal); err == nil {
		data.TotalPayments = v
	}
	if v, err := cache.GetInt(CacheKeyCommissionsTotal); err == nil {
		data.TotalCommissions = v
	}
	if raw, err := cache.Get(CacheKeyCommissionsPending); err == nil {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			data.PendingCommissionCents = cents
		}
	}
	if v, err := cache.GetInt(CacheKeyWithdrawalsPending); err == nil {
		data.PendingWithdrawals = v
	}
	if v, err := cache.GetInt(CacheKeyPaymentsErrored); err == nil {
		data.ErroredPayments = v
	}
	return data
}
