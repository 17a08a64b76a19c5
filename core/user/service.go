package user

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/activation"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")

	nowFunc = time.Now // mockable

	tempPwdLen     = 8
	tempPwdCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists if the email is already taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUserByID(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		codeSvc *activation.Service
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	codeSvc *activation.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		codeSvc: codeSvc,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *Service) Create(ctx context.Context, nu NewUser, role string) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		Email:     nu.Email,
		FullName:  nu.FullName,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUserByID(ctx, id)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ToggleActive flips the user's active flag. Inactive users cannot log in.
func (svc *Service) ToggleActive(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = !usr.IsActive
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset issues a fresh reset code for the account and
// emails it. The email is sent synchronously: a code the user never
// receives is worse than an error they can retry.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	code, err := svc.codeSvc.Issue(ctx, activation.Key{
		UserID: usr.ID,
		Email:  usr.Email,
		Type:   activation.TypePasswordReset,
	})
	if err != nil {
		return errors.Wrap(err, "issuing password reset code")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset Code",
		TemplateName: "password-reset",
		TemplateData: struct {
			Code      string
			ExpiresIn int // minutes
		}{
			Code:      code.Code,
			ExpiresIn: int(svc.codeSvc.Timeout(activation.TypePasswordReset).Minutes()),
		},
	}
	return errors.Wrap(svc.mailSvc.SendMessage(msg), "sending password reset email")
}

// ResetPassword redeems the code and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, email, code, newPwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}

	key := activation.Key{UserID: usr.ID, Email: usr.Email, Type: activation.TypePasswordReset}
	if _, err = svc.codeSvc.Redeem(ctx, key, code); err != nil {
		return User{}, err
	}

	if err = usr.SetPassword(newPwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AdminResetPassword sets a random temporary password on the account and
// emails it to the user. The new password is also returned so the caller
// can relay it to the admin.
func (svc *Service) AdminResetPassword(ctx context.Context, id string) (string, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}

	tempPwd := generateTempPassword()
	if err = usr.SetPassword(tempPwd); err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return "", err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Your Temporary Password",
		TemplateName: "temp-password",
		TemplateData: struct{ Password string }{Password: tempPwd},
	})
	return tempPwd, nil
}

func generateTempPassword() string {
	max := big.NewInt(int64(len(tempPwdCharset)))
	pwd := make([]byte, tempPwdLen)
	for i := range pwd {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand is broken; nothing sensible to do
		}
		pwd[i] = tempPwdCharset[n.Int64()]
	}
	return string(pwd)
}
