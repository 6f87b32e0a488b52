package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/credential"
	"github.com/iliyamo/adas-events/internal/model"
)

// SetupStatus is what the organizer sees about their gateway keys.  The
// secret key is never returned.
type SetupStatus struct {
	Complete  bool   `json:"complete"`
	PublicKey string `json:"publicKey,omitempty"`
	Live      bool   `json:"live"`
}

func (s *Events) PaymentSetup(ctx context.Context, userID string) (SetupStatus, error) {
	setup, err := s.store.GetPaymentSetup(ctx, userID)
	if err != nil {
		return SetupStatus{}, err
	}
	if !setup.Complete() {
		return SetupStatus{}, nil
	}
	return SetupStatus{
		Complete:  true,
		PublicKey: setup.PublicKey,
		Live:      strings.HasPrefix(setup.PublicKey, "pk_live_"),
	}, nil
}

// SavePaymentSetup validates and stores the organizer's keys, sealing the
// secret.  Test and live keys cannot be mixed.
func (s *Events) SavePaymentSetup(ctx context.Context, userID, publicKey, secretKey string) (SetupStatus, error) {
	publicKey = strings.TrimSpace(publicKey)
	secretKey = strings.TrimSpace(secretKey)
	if !credential.ValidPublicKey(publicKey) {
		return SetupStatus{}, invalid("publicKey", "must start with pk_test_ or pk_live_")
	}
	if !credential.ValidSecretKey(secretKey) {
		return SetupStatus{}, invalid("secretKey", "must start with sk_test_ or sk_live_")
	}
	if strings.HasPrefix(publicKey, "pk_live_") != strings.HasPrefix(secretKey, "sk_live_") {
		return SetupStatus{}, invalid("secretKey", "test and live keys cannot be mixed")
	}
	sealed, err := s.sealer.Seal(secretKey)
	if err != nil {
		return SetupStatus{}, err
	}
	now := s.clock.Now().UTC()
	setup := model.PaymentSetup{
		CreatorID:       userID,
		PublicKey:       publicKey,
		SecretKeySealed: sealed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.SavePaymentSetup(ctx, setup); err != nil {
		return SetupStatus{}, err
	}
	s.logger.Info("payment setup saved", zap.String("creator_id", userID))
	return SetupStatus{Complete: true, PublicKey: publicKey, Live: strings.HasPrefix(publicKey, "pk_live_")}, nil
}
