package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/logger"
	"mana/internal/models"
	"mana/internal/pagination"
)

// snapshotService handles net-worth snapshot operations.
type snapshotService struct {
	db *gorm.DB
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB) SnapshotServicer {
	return &snapshotService{db: db}
}

// ComputeAndRecordSnapshots records a net-worth snapshot for every user.
func (s *snapshotService) ComputeAndRecordSnapshots(recordedAt time.Time) (int, error) {
	var userIDs []string
	if err := s.db.Model(&models.User{}).Order("created_at ASC").Pluck("id", &userIDs).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	count := 0
	for _, userID := range userIDs {
		if _, err := s.RecordUserSnapshot(userID, recordedAt); err != nil {
			return count, err
		}
		count++
	}

	logger.Get().Infow("recorded net worth snapshots", "users", count, "recorded_at", recordedAt)
	return count, nil
}

// RecordUserSnapshot computes the user's current net worth and stores it at
// recordedAt, replacing a snapshot already taken at that instant.
func (s *snapshotService) RecordUserSnapshot(userID string, recordedAt time.Time) (*models.NetWorthSnapshot, error) {
	snapshot, err := s.computeSnapshot(userID, recordedAt)
	if err != nil {
		return nil, err
	}

	var existing models.NetWorthSnapshot
	err = s.db.Where("user_id = ? AND recorded_at = ?", userID, recordedAt).First(&existing).Error
	switch {
	case err == nil:
		if err := s.db.Model(&existing).Updates(map[string]interface{}{
			"wallet_balance": snapshot.WalletBalance,
			"card_debt":      snapshot.CardDebt,
			"net_worth":      snapshot.NetWorth,
		}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		snapshot.ID = existing.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(snapshot).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snapshot, nil
}

// computeSnapshot sums wallet balances and the used credit of every card.
func (s *snapshotService) computeSnapshot(userID string, recordedAt time.Time) (*models.NetWorthSnapshot, error) {
	var wallets []models.Wallet
	if err := s.db.Select("balance").Where("user_id = ?", userID).Find(&wallets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var cards []models.Card
	if err := s.db.Select("used").Where("user_id = ?", userID).Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	walletBalance := decimal.Zero
	for i := range wallets {
		walletBalance = walletBalance.Add(wallets[i].Balance)
	}
	cardDebt := decimal.Zero
	for i := range cards {
		cardDebt = cardDebt.Add(cards[i].Used)
	}

	return &models.NetWorthSnapshot{
		UserID:        userID,
		RecordedAt:    recordedAt,
		WalletBalance: walletBalance,
		CardDebt:      cardDebt,
		NetWorth:      walletBalance.Sub(cardDebt),
	}, nil
}

// GetSnapshots returns paginated snapshots for a user within a date range.
func (s *snapshotService) GetSnapshots(
	userID string,
	from, to time.Time,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.NetWorthSnapshot], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.NetWorthSnapshot{}).
		Where("user_id = ? AND recorded_at >= ? AND recorded_at <= ?", userID, from, to)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.NetWorthSnapshot
	if err := base.Order("recorded_at DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}
