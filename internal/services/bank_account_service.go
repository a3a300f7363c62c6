package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// BankAccountService manages host payout accounts. Account numbers are sealed
// at rest and only ever returned masked.
type BankAccountService struct {
	tx       database.Transactor
	store    BankAccountStore
	accounts AccountStore
	sealer   *utils.Sealer
	logger   *logrus.Logger
}

// NewBankAccountService creates a new BankAccountService
func NewBankAccountService(tx database.Transactor, store BankAccountStore, accounts AccountStore, sealer *utils.Sealer, logger *logrus.Logger) *BankAccountService {
	return &BankAccountService{
		tx:       tx,
		store:    store,
		accounts: accounts,
		sealer:   sealer,
		logger:   logger,
	}
}

func (s *BankAccountService) hostID(ctx context.Context, actor models.Actor) (uuid.UUID, error) {
	if actor.Role != models.RoleHost {
		return uuid.Nil, models.ErrForbidden
	}
	if actor.HostID != nil {
		return *actor.HostID, nil
	}
	host, err := s.accounts.GetHostByUserID(ctx, actor.AccountID)
	if err != nil {
		return uuid.Nil, err
	}
	return host.ID, nil
}

func (s *BankAccountService) view(a *models.HostBankAccount) models.BankAccountView {
	masked := "****" + a.AccountLast4
	if number, err := s.sealer.Open(a.AccountNumber); err == nil {
		masked = utils.MaskAccountNumber(number)
	} else {
		s.logger.WithError(err).WithField("bank_account_id", a.ID).Warn("Failed to unseal account number")
	}
	return models.BankAccountView{
		ID:                  a.ID,
		BankName:            a.BankName,
		AccountHolderName:   a.AccountHolderName,
		MaskedAccountNumber: masked,
		IFSCCode:            a.IFSCCode,
		BranchName:          a.BranchName,
		IsPrimary:           a.IsPrimary,
		IsVerified:          a.IsVerified,
		CreatedAt:           a.CreatedAt,
	}
}

// Add stores a new payout account. A host's first account becomes primary.
func (s *BankAccountService) Add(ctx context.Context, actor models.Actor, req models.AddBankAccountRequest) (*models.BankAccountView, error) {
	req.IFSCCode = strings.ToUpper(strings.TrimSpace(req.IFSCCode))
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	hostID, err := s.hostID(ctx, actor)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(req.AccountNumber)
	if err != nil {
		return nil, err
	}

	account := &models.HostBankAccount{
		ID:                uuid.New(),
		HostID:            hostID,
		BankName:          strings.TrimSpace(req.BankName),
		AccountHolderName: strings.TrimSpace(req.AccountHolderName),
		AccountNumber:     sealed,
		AccountLast4:      req.AccountNumber[len(req.AccountNumber)-4:],
		IFSCCode:          req.IFSCCode,
		BranchName:        req.BranchName,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		count, err := s.store.CountByHost(ctx, hostID)
		if err != nil {
			return err
		}
		account.IsPrimary = count == 0 || req.MakePrimary
		if account.IsPrimary && count > 0 {
			if err := s.store.ClearPrimary(ctx, hostID); err != nil {
				return err
			}
		}
		return s.store.Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"host_id":         hostID,
		"bank_account_id": account.ID,
		"is_primary":      account.IsPrimary,
	}).Info("Bank account added")

	v := s.view(account)
	return &v, nil
}

// List returns the host's accounts, primary first
func (s *BankAccountService) List(ctx context.Context, actor models.Actor) ([]models.BankAccountView, error) {
	hostID, err := s.hostID(ctx, actor)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	views := make([]models.BankAccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, s.view(a))
	}
	return views, nil
}

// SetPrimary makes one of the host's accounts the payout destination
func (s *BankAccountService) SetPrimary(ctx context.Context, actor models.Actor, accountID uuid.UUID) error {
	hostID, err := s.hostID(ctx, actor)
	if err != nil {
		return err
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.store.GetForUpdate(ctx, hostID, accountID)
		if err != nil {
			return err
		}
		if account.IsPrimary {
			return nil
		}
		if err := s.store.ClearPrimary(ctx, hostID); err != nil {
			return err
		}
		return s.store.MarkPrimary(ctx, account.ID)
	})
}

// Remove deletes an account. Removing the primary promotes the oldest remaining one.
func (s *BankAccountService) Remove(ctx context.Context, actor models.Actor, accountID uuid.UUID) error {
	hostID, err := s.hostID(ctx, actor)
	if err != nil {
		return err
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.store.GetForUpdate(ctx, hostID, accountID)
		if err != nil {
			return err
		}
		if err := s.store.Delete(ctx, account.ID); err != nil {
			return err
		}
		if !account.IsPrimary {
			return nil
		}
		return s.store.PromoteOldest(ctx, hostID)
	})
}

// Verify marks an account as verified. Admin only.
func (s *BankAccountService) Verify(ctx context.Context, admin models.Actor, accountID uuid.UUID) error {
	if !admin.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.store.MarkVerified(ctx, accountID); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"bank_account_id": accountID,
		"admin":           admin.AccountID,
	}).Info("Bank account verified")
	return nil
}
