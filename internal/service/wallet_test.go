package service

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/wallet"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type WalletServiceSuite struct {
	billingFixtures
	service WalletService
}

func TestWalletService(t *testing.T) {
	suite.Run(t, new(WalletServiceSuite))
}

func (s *WalletServiceSuite) SetupTest() {
	s.billingFixtures.SetupTest()
	s.service = NewWalletService(s.params)
}

func (s *WalletServiceSuite) createWallet(currency string, expiresAt *time.Time) string {
	w, err := s.service.CreateWallet(s.GetContext(), &dto.CreateWalletRequest{
		CustomerID:   s.customer.ID,
		Currency:     currency,
		RateAmount:   dec("2"),
		ExpirationAt: expiresAt,
	})
	s.Require().NoError(err)
	return w.ID
}

func (s *WalletServiceSuite) topUp(walletID, credits string) {
	_, err := s.service.TopUp(s.GetContext(), &dto.TopUpWalletRequest{
		WalletID:          walletID,
		Credits:           dec(credits),
		TransactionStatus: types.TransactionStatusGranted,
	})
	s.Require().NoError(err)
}

func (s *WalletServiceSuite) TestTopUpConvertsCreditsAtRate() {
	id := s.createWallet("USD", nil)
	s.topUp(id, "10")

	w, err := s.service.GetWallet(s.GetContext(), id)
	s.NoError(err)
	s.Equal("usd", w.Currency)
	s.True(dec("20").Equal(w.Balance))
	s.True(dec("10").Equal(w.CreditsBalance))
	s.NoError(s.service.VerifyBalance(s.GetContext(), id))

	_, err = s.service.TopUp(s.GetContext(), &dto.TopUpWalletRequest{
		WalletID:          id,
		Credits:           dec("0"),
		TransactionStatus: types.TransactionStatusGranted,
	})
	s.True(ierr.Is(err, ierr.ErrValidation))
}

func (s *WalletServiceSuite) TestApplySkipsOtherCurrencyAndExpired() {
	past := s.GetNow().Add(-time.Hour)
	expired := s.createWallet("usd", &past)
	euro := s.createWallet("eur", nil)
	usable := s.createWallet("usd", nil)
	for _, id := range []string{expired, euro, usable} {
		s.topUp(id, "50")
	}

	var applied []string
	err := s.GetDB().WithTx(s.GetContext(), func(ctx context.Context) error {
		txns, err := s.service.ApplyToInvoice(ctx, s.customer.ID, "usd", "inv_1", dec("30.555"), s.GetNow())
		applied = lo.Map(txns, func(t *wallet.Transaction, _ int) string {
			return t.WalletID + ":" + t.Amount.String()
		})
		return err
	})
	s.NoError(err)
	// whole cents only
	s.Equal([]string{usable + ":30.55"}, applied)
	s.NoError(s.service.VerifyBalance(s.GetContext(), usable))
}

func (s *WalletServiceSuite) TestApplyWithNonTerminatingRateKeepsCreditsConsistent() {
	w, err := s.service.CreateWallet(s.GetContext(), &dto.CreateWalletRequest{
		CustomerID: s.customer.ID,
		Currency:   "usd",
		RateAmount: dec("3"),
	})
	s.Require().NoError(err)
	s.topUp(w.ID, "10")

	var txns []*wallet.Transaction
	err = s.GetDB().WithTx(s.GetContext(), func(ctx context.Context) error {
		var err error
		txns, err = s.service.ApplyToInvoice(ctx, s.customer.ID, "usd", "inv_1", dec("1.00"), s.GetNow())
		return err
	})
	s.NoError(err)
	s.Require().Len(txns, 1)
	s.True(dec("1").Equal(txns[0].Amount))
	s.True(dec("0.333333333333333").Equal(txns[0].CreditAmount), "got %s", txns[0].CreditAmount)

	stored, err := s.service.GetWallet(s.GetContext(), w.ID)
	s.NoError(err)
	s.True(dec("29").Equal(stored.Balance))
	s.True(dec("9.666666666666667").Equal(stored.CreditsBalance), "got %s", stored.CreditsBalance)
	s.NoError(stored.Validate())
	s.NoError(s.service.VerifyBalance(s.GetContext(), w.ID))

	// a top up on the fractional balance stays in step
	s.topUp(w.ID, "1")
	stored, err = s.service.GetWallet(s.GetContext(), w.ID)
	s.NoError(err)
	s.True(dec("32").Equal(stored.Balance))
	s.NoError(stored.Validate())
}

func (s *WalletServiceSuite) TestExpireVoidsResidualBalance() {
	soon := s.GetNow().Add(time.Hour)
	id := s.createWallet("usd", &soon)
	s.topUp(id, "5")

	terminated, err := s.service.ExpireWallets(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Zero(terminated)

	terminated, err = s.service.ExpireWallets(s.GetContext(), soon)
	s.NoError(err)
	s.Equal(1, terminated)

	w, err := s.service.GetWallet(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.WalletStatusTerminated, w.WalletStatus)
	s.True(w.Balance.IsZero())
	s.NoError(s.service.VerifyBalance(s.GetContext(), id))
	s.Contains(s.GetWebhooks().Names(), types.WebhookEventWalletTerminated)

	_, err = s.service.TopUp(s.GetContext(), &dto.TopUpWalletRequest{
		WalletID:          id,
		Credits:           dec("1"),
		TransactionStatus: types.TransactionStatusPurchased,
	})
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))
}

func (s *WalletServiceSuite) TestTerminateTwiceFails() {
	id := s.createWallet("usd", nil)
	s.NoError(s.service.Terminate(s.GetContext(), id))
	err := s.service.Terminate(s.GetContext(), id)
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))
}
