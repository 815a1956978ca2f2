package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
	"github.com/truecar-kr/truecar-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
)

type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("email is required"),
			is.EmailFormat.Error("invalid email format"),
			validation.Length(5, 255),
		),
		validation.Field(&in.Password,
			validation.Required.Error("password is required"),
			validation.Length(util.MinPasswordLength, 72).Error("password must be 8-72 characters"),
		),
		validation.Field(&in.DisplayName, validation.Length(0, 100)),
	)
}

// AuthResult is returned on signup and login.
type AuthResult struct {
	Account *model.Account  `json:"account"`
	Tokens  *util.TokenPair `json:"tokens"`
	IsAdmin bool            `json:"is_admin"`
}

type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error)
	GetAccount(ctx context.Context, id uint) (*model.Account, error)
}

type authService struct {
	accountRepo   repository.AccountRepository
	gate          AdminGate
	adminSignups  map[string]struct{}
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewAuthService creates the account service. Accounts whose email is in
// adminSignupEmails are granted admin rights on signup.
func NewAuthService(
	accountRepo repository.AccountRepository,
	gate AdminGate,
	adminSignupEmails []string,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	allow := make(map[string]struct{}, len(adminSignupEmails))
	for _, e := range adminSignupEmails {
		allow[e] = struct{}{}
	}
	return &authService{
		accountRepo:   accountRepo,
		gate:          gate,
		adminSignups:  allow,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *authService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := toValidationError(input.Validate()); err != nil {
		return nil, err
	}

	logger.Info("Attempting account signup", map[string]interface{}{
		"email": input.Email,
	})

	existing, err := s.accountRepo.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing account", err, map[string]interface{}{
			"email": input.Email,
		})
		return nil, storageError("find account", err)
	}
	if existing != nil {
		logger.Warn("Signup failed: email already exists", map[string]interface{}{
			"email": input.Email,
		})
		return nil, ErrEmailAlreadyExists
	}

	hash, err := util.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, util.ErrPasswordTooLong) {
			return nil, newFieldError("password", err.Error())
		}
		return nil, err
	}

	account := &model.Account{
		Email:        input.Email,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, storageError("create account", err)
	}

	if _, ok := s.adminSignups[account.Email]; ok {
		if err := s.gate.Grant(ctx, account.Email); err != nil {
			logger.Error("Failed to grant admin on signup", err, map[string]interface{}{
				"account_id": account.ID,
			})
		}
	}

	logger.Info("Account created", map[string]interface{}{
		"account_id": account.ID,
	})
	return s.issue(ctx, account)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: unknown email", map[string]interface{}{
				"email": email,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, storageError("find account", err)
	}

	if !util.VerifyPassword(account.PasswordHash, password) {
		logger.Warn("Login failed: wrong password", map[string]interface{}{
			"account_id": account.ID,
		})
		return nil, ErrInvalidCredentials
	}

	logger.Info("Login succeeded", map[string]interface{}{
		"account_id": account.ID,
	})
	return s.issue(ctx, account)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != util.TokenTypeRefresh {
		return nil, util.ErrInvalidToken
	}

	account, err := s.GetAccount(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return util.GenerateTokenPair(account.ID, account.Email, s.jwtSecret, s.accessExpiry, s.refreshExpiry)
}

func (s *authService) GetAccount(ctx context.Context, id uint) (*model.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storageError("find account", err)
	}
	return account, nil
}

func (s *authService) issue(ctx context.Context, account *model.Account) (*AuthResult, error) {
	tokens, err := util.GenerateTokenPair(account.ID, account.Email, s.jwtSecret, s.accessExpiry, s.refreshExpiry)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"account_id": account.ID,
		})
		return nil, err
	}
	return &AuthResult{
		Account: account,
		Tokens:  tokens,
		IsAdmin: s.gate.IsAdmin(ctx, account.Email),
	}, nil
}
