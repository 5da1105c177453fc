package repository

import (
	"context"
	"time"

	"github.com/firescope/resource-governor/internal/models"
	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/google/uuid"
)

type RequestLogRepository struct {
	db      *storage.Postgres
	monitor *monitor.Monitor
}

func NewRequestLogRepository(db *storage.Postgres, mon *monitor.Monitor) *RequestLogRepository {
	return &RequestLogRepository{db: db, monitor: mon}
}

// Inserts a new request log
func (r *RequestLogRepository) Create(ctx context.Context, log *models.RequestLog) error {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "create")

	err := r.db.DB.WithContext(ctx).Create(log).Error
	r.monitor.Complete(queryID, 1, err)

	return err
}

// Inserts multiple request logs (for batch insertion)
func (r *RequestLogRepository) CreateBatch(ctx context.Context, logs []models.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "create_batch")

	err := r.db.DB.WithContext(ctx).Create(&logs).Error
	r.monitor.Complete(queryID, len(logs), err)

	return err
}

// Retrieves logs within a time range
func (r *RequestLogRepository) FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "find_by_time_range")

	var logs []models.RequestLog
	err := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	r.monitor.Complete(queryID, len(logs), err)
	return logs, err
}

// Retrieves logs for a specific user
func (r *RequestLogRepository) FindByUser(ctx context.Context, userID string, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "find_by_user")

	var logs []models.RequestLog
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ? AND timestamp BETWEEN ? AND ?", userID, from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	r.monitor.Complete(queryID, len(logs), err)
	return logs, err
}

// Retrieve logs with specific status code
func (r *RequestLogRepository) FindByStatusCode(ctx context.Context, statusCode int, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "find_by_status_code")

	var logs []models.RequestLog
	err := r.db.DB.WithContext(ctx).
		Where("status_code = ? AND timestamp BETWEEN ? AND ?", statusCode, from, to).
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	r.monitor.Complete(queryID, len(logs), err)
	return logs, err
}

// Counts logs in a time range
func (r *RequestLogRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "count_by_time_range")

	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error

	r.monitor.Complete(queryID, int(count), err)
	return count, err
}

// Calculates average response time
func (r *RequestLogRepository) GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "avg_response_time")

	var avg float64
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("AVG(response_time_ms)").
		Scan(&avg).Error

	r.monitor.Complete(queryID, 1, err)
	return avg, err
}

// Calculates response time percentile
func (r *RequestLogRepository) GetPercentile(ctx context.Context, from, to time.Time, percentile float64) (int, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "percentile")

	var result int
	query := `
		SELECT PERCENTILE_CONT(?) WITHIN GROUP (ORDER BY response_time_ms)
		FROM request_logs
		WHERE timestamp BETWEEN ? AND ?
	`

	err := r.db.DB.WithContext(ctx).Raw(query, percentile, from, to).Scan(&result).Error
	r.monitor.Complete(queryID, 1, err)

	return result, err
}

// Count logs by status code range (e.g., 4xx, 5xx)
func (r *RequestLogRepository) CountByStatusCodeRange(ctx context.Context, minStatusCode, maxStatusCode int, from, to time.Time) (int64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "count_by_status_range")

	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("status_code BETWEEN ? AND ? AND timestamp BETWEEN ? AND ?", minStatusCode, maxStatusCode, from, to).
		Count(&count).Error

	r.monitor.Complete(queryID, int(count), err)
	return count, err
}

func (r *RequestLogRepository) CountRateLimited(ctx context.Context, from, to time.Time) (int64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "count_rate_limited")

	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("rate_limited = ? AND timestamp BETWEEN ? AND ?", true, from, to).
		Count(&count).Error

	r.monitor.Complete(queryID, int(count), err)
	return count, err
}

// Returns the most requested paths with their counts
func (r *RequestLogRepository) GetTopEndpoints(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "top_endpoints")

	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Select("path, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("path").
		Order("count DESC").
		Limit(limit).
		Rows()

	if err != nil {
		r.monitor.Complete(queryID, 0, err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var count int64

		if err := rows.Scan(&path, &count); err != nil {
			r.monitor.Complete(queryID, len(results), err)
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"path":  path,
			"count": count,
		})
	}

	r.monitor.Complete(queryID, len(results), nil)
	return results, nil
}

// Deletes logs older than the specified time
func (r *RequestLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	queryID := uuid.NewString()
	r.monitor.Track(queryID, "request_logs", "delete_old")

	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.RequestLog{})

	r.monitor.Complete(queryID, int(result.RowsAffected), result.Error)
	return result.RowsAffected, result.Error
}
