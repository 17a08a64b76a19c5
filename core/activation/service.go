package activation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/studentbuddy/backend/core"
)

var (
	// errors
	ErrCodeInvalid = errors.New("invalid or expired code")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// DeleteCodes removes every code matching the key. Issuing a new
		// code always starts from a clean slate.
		DeleteCodes(ctx context.Context, key Key) error
		CreateCode(ctx context.Context, code Code) (Code, error)
		// RedeemCode atomically marks the matching, unused, unexpired code
		// as used and returns it; ErrCodeInvalid otherwise. The mark-used
		// step must be a single conditional update so a code can never be
		// redeemed twice.
		RedeemCode(ctx context.Context, key Key, code string, now time.Time) (Code, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// Issue invalidates any previously issued code for the key and creates a
// fresh one with the expiry delta of the code type.
func (svc *Service) Issue(ctx context.Context, key Key) (Code, error) {
	if err := svc.repo.DeleteCodes(ctx, key); err != nil {
		return Code{}, err
	}

	now := nowFunc().UTC()
	code := Code{
		ID:        uuid.NewString(),
		UserID:    key.UserID,
		Email:     key.Email,
		Code:      GenerateCode(),
		Type:      key.Type,
		MentorID:  key.MentorID,
		ExpiresAt: now.Add(svc.Timeout(key.Type)),
		CreatedAt: now,
	}
	return svc.repo.CreateCode(ctx, code)
}

// Redeem consumes a code: it must match the key, be unused and unexpired.
func (svc *Service) Redeem(ctx context.Context, key Key, code string) (Code, error) {
	return svc.repo.RedeemCode(ctx, key, code, nowFunc().UTC())
}

func (svc *Service) Timeout(codeType string) time.Duration {
	if codeType == TypeMentorActivation {
		return svc.conf.MentorActivationCodeTimeout
	}
	return svc.conf.PasswordResetCodeTimeout
}

// GenerateCode returns a random 6-digit numeric code.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(err) // crypto/rand is broken; nothing sensible to do
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
