package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
)

func TestLeaderboardService_Overall(t *testing.T) {
	repo, m := newTestRepository()
	svc := NewLeaderboardService(repo, zap.NewNop())

	m.seedUser("u-1", "A1", model.RoleStaff, testDeptNursing, "password123").TotalScore = 10
	m.seedUser("u-2", "A2", model.RoleStaff, testDeptPharmacy, "password123").TotalScore = 30
	m.seedUser("u-3", "A3", model.RoleStaff, testDeptNursing, "password123").TotalScore = 20

	board, err := svc.Overall(context.Background(), &dto.LeaderboardRequest{})
	if err != nil {
		t.Fatalf("Overall failed: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(board))
	}
	if board[0].UserID != "u-2" || board[0].Rank != 1 || board[0].DepartmentName != "Pharmacy" {
		t.Errorf("unexpected leader %+v", board[0])
	}

	nursing, err := svc.Overall(context.Background(), &dto.LeaderboardRequest{DepartmentID: testDeptNursing, Limit: 1})
	if err != nil {
		t.Fatalf("Overall failed: %v", err)
	}
	if len(nursing) != 1 || nursing[0].UserID != "u-3" || nursing[0].Score != 20 {
		t.Errorf("expected the top nurse only, got %+v", nursing)
	}
}
