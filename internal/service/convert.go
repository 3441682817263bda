package service

import (
	"math"
	"time"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toUserResponse(user *model.User) *dto.UserResponse {
	var dept *dto.DepartmentResponse
	if user.Department != nil {
		dept = &dto.DepartmentResponse{
			ID:   user.Department.DepartmentID,
			Name: user.Department.Name,
		}
	}
	return &dto.UserResponse{
		ID:                 user.UserID,
		Name:               user.Name,
		Email:              user.Email,
		StaffID:            user.StaffID,
		Role:               user.Role,
		Department:         dept,
		MustChangePassword: user.MustChangePassword,
		TotalScore:         user.TotalScore,
	}
}
