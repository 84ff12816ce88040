package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepartmentSpend struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	RequestCount   int64  `json:"request_count"`
	ApprovedAmount string `json:"approved_amount"`
}

type StatisticsResponse struct {
	TimeRangeStartDate  time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate    time.Time         `json:"time_range_end_date"`
	StatusCounts        map[string]int64  `json:"status_counts"`
	TotalApprovedAmount string            `json:"total_approved_amount"`
	TopDepartments      []DepartmentSpend `json:"top_departments"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates workflow metrics over the created_at time bracket;
// approved spend is bracketed by reviewed_at, when the money was committed.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (StatisticsResponse, error) {
	response := StatisticsResponse{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
		StatusCounts:       map[string]int64{},
	}

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.PurchaseRequest{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return response, err
	}
	for _, row := range statusRows {
		response.StatusCounts[row.Status] = row.Count
	}

	var totalApproved struct {
		Value decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Model(&model.PurchaseRequest{}).
		Select("COALESCE(SUM(estimated_amount), 0) as value").
		Where("status = ? AND reviewed_at >= ? AND reviewed_at <= ?", model.StatusApproved, startDate, endDate).
		Scan(&totalApproved).Error; err != nil {
		return response, err
	}
	response.TotalApprovedAmount = totalApproved.Value.StringFixed(2)

	var departmentRows []struct {
		DepartmentID   string
		DepartmentName string
		RequestCount   int64
		ApprovedAmount decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Table("purchase_requests").
		Select("departments.id as department_id, departments.name as department_name, COUNT(*) as request_count, COALESCE(SUM(purchase_requests.estimated_amount), 0) as approved_amount").
		Joins("JOIN departments ON departments.id = purchase_requests.department_id").
		Where("purchase_requests.status = ? AND purchase_requests.reviewed_at >= ? AND purchase_requests.reviewed_at <= ?", model.StatusApproved, startDate, endDate).
		Group("departments.id, departments.name").
		Order("approved_amount DESC").
		Limit(5).
		Scan(&departmentRows).Error; err != nil {
		return response, err
	}

	response.TopDepartments = make([]DepartmentSpend, 0, len(departmentRows))
	for _, row := range departmentRows {
		response.TopDepartments = append(response.TopDepartments, DepartmentSpend{
			DepartmentID:   row.DepartmentID,
			DepartmentName: row.DepartmentName,
			RequestCount:   row.RequestCount,
			ApprovedAmount: row.ApprovedAmount.StringFixed(2),
		})
	}

	return response, nil
}
