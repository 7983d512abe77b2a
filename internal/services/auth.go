package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/clients/sendgrid"
	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/requestdata"
	"github.com/apoliceplus/backend/internal/types"
)

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) error
	LoginUser(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	RefreshUser(ctx context.Context) (accessToken, refreshToken string, err error)
	LogoutUser(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	resetRepo     repos.PasswordResetRepo
	mailer        sendgrid.Client // optional
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
	resetBaseURL  string
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	resetRepo repos.PasswordResetRepo,
	mailer sendgrid.Client,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	resetTTL time.Duration,
	resetBaseURL string,
) AuthService {
	return &authService{
		db:            db,
		log:           baseLog.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		resetRepo:     resetRepo,
		mailer:        mailer,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		resetTTL:      resetTTL,
		resetBaseURL:  resetBaseURL,
	}
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)

	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return apierr.InvalidInput(fmt.Errorf("invalid email"))
	}
	if len(user.Password) < 8 {
		return apierr.InvalidInput(fmt.Errorf("password must have at least 8 characters"))
	}
	exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
	if err != nil {
		return apierr.Upstream(fmt.Errorf("check email: %w", err))
	}
	if exists {
		return apierr.Conflict(fmt.Errorf("email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hashed)
	user.ID = uuid.New()

	if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		return apierr.Upstream(fmt.Errorf("create user: %w", err))
	}
	as.log.Info("User registered", "user_id", user.ID)
	return nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", "", apierr.InvalidInput(fmt.Errorf("email and password required"))
	}

	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return "", "", apierr.Upstream(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		return "", "", apierr.Unauthorized(fmt.Errorf("invalid credentials"))
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", "", apierr.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	var accessToken, refreshToken string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Expired sessions are swept on login.
		existing, err := as.userTokenRepo.GetByUserIDs(ctx, tx, []uuid.UUID{user.ID})
		if err != nil {
			return fmt.Errorf("check user tokens: %w", err)
		}
		var expiredIDs []uuid.UUID
		for _, t := range existing {
			if t.ExpiresAt.Before(time.Now()) {
				expiredIDs = append(expiredIDs, t.ID)
			}
		}
		if len(expiredIDs) > 0 {
			if err := as.userTokenRepo.DeleteByIDs(ctx, tx, expiredIDs); err != nil {
				return fmt.Errorf("delete expired tokens: %w", err)
			}
		}

		accessToken, err = as.generateAccessToken(user)
		if err != nil {
			return fmt.Errorf("generate access token: %w", err)
		}
		refreshToken = uuid.New().String()
		userToken := types.UserToken{
			ID:           uuid.New(),
			UserID:       user.ID,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    time.Now().Add(as.refreshTTL),
		}
		if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&userToken}); err != nil {
			return fmt.Errorf("create user token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", apierr.Upstream(err)
	}
	return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context) (string, string, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.RefreshToken == "" {
		return "", "", apierr.Unauthorized(fmt.Errorf("missing refresh token"))
	}

	stored, err := as.userTokenRepo.GetByRefreshToken(ctx, nil, rd.RefreshToken)
	if err != nil {
		return "", "", apierr.Upstream(fmt.Errorf("load token: %w", err))
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return "", "", apierr.Unauthorized(fmt.Errorf("refresh token expired"))
	}

	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{stored.UserID})
	if err != nil || len(users) == 0 {
		return "", "", apierr.Unauthorized(fmt.Errorf("user not found"))
	}
	user := users[0]

	var accessToken, refreshToken string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userTokenRepo.DeleteByIDs(ctx, tx, []uuid.UUID{stored.ID}); err != nil {
			return fmt.Errorf("rotate token: %w", err)
		}
		accessToken, err = as.generateAccessToken(user)
		if err != nil {
			return fmt.Errorf("generate access token: %w", err)
		}
		refreshToken = uuid.New().String()
		userToken := types.UserToken{
			ID:           uuid.New(),
			UserID:       user.ID,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    time.Now().Add(as.refreshTTL),
		}
		_, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&userToken})
		return err
	})
	if err != nil {
		return "", "", apierr.Upstream(err)
	}
	return accessToken, refreshToken, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.Unauthorized(fmt.Errorf("not logged in"))
	}
	if err := as.userTokenRepo.DeleteByUserID(ctx, nil, rd.UserID); err != nil {
		return apierr.Upstream(fmt.Errorf("delete tokens: %w", err))
	}
	return nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !token.Valid {
		return ctx, apierr.Unauthorized(fmt.Errorf("invalid token"))
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return ctx, apierr.Unauthorized(fmt.Errorf("invalid token subject"))
	}

	// The token must still be backed by a live session row.
	stored, err := as.userTokenRepo.GetByAccessToken(ctx, nil, tokenString)
	if err != nil {
		return ctx, apierr.Upstream(fmt.Errorf("load session: %w", err))
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return ctx, apierr.Unauthorized(fmt.Errorf("session expired"))
	}

	rd := &requestdata.RequestData{
		TokenString:  tokenString,
		RefreshToken: stored.RefreshToken,
		UserID:       userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"iat": now.Unix(),
		"exp": now.Add(as.accessTTL).Unix(),
		"jti": uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apierr.InvalidInput(fmt.Errorf("email required"))
	}
	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return apierr.Upstream(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		// Do not reveal whether an address is registered.
		as.log.Info("Password reset requested for unknown email")
		return nil
	}
	user := users[0]

	reset := &types.PasswordReset{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(as.resetTTL),
	}
	if _, err := as.resetRepo.Create(ctx, nil, []*types.PasswordReset{reset}); err != nil {
		return apierr.Upstream(fmt.Errorf("create reset: %w", err))
	}

	if as.mailer == nil {
		as.log.Warn("Password reset created but no mailer configured", "user_id", user.ID)
		return nil
	}
	link := strings.TrimRight(as.resetBaseURL, "/") + "/reset-password?token=" + reset.Token
	err = as.mailer.Send(ctx, sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: user.Email, Name: user.FirstName}},
		Subject: "Redefinição de senha",
		Text:    "Para redefinir sua senha, acesse: " + link,
		HTML:    fmt.Sprintf(`<p>Para redefinir sua senha, <a href="%s">clique aqui</a>. O link expira em %d minutos.</p>`, link, int(as.resetTTL.Minutes())),
	})
	if err != nil {
		return apierr.Upstream(fmt.Errorf("send reset email: %w", err))
	}
	return nil
}

func (as *authService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return apierr.InvalidInput(fmt.Errorf("password must have at least 8 characters"))
	}
	reset, err := as.resetRepo.GetByToken(ctx, nil, strings.TrimSpace(token))
	if err != nil {
		return apierr.Upstream(fmt.Errorf("load reset: %w", err))
	}
	if reset == nil || reset.UsedAt != nil || reset.ExpiresAt.Before(time.Now()) {
		return apierr.Unauthorized(fmt.Errorf("invalid or expired reset token"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userRepo.UpdateFields(ctx, tx, reset.UserID, map[string]interface{}{
			"password":   string(hashed),
			"updated_at": time.Now(),
		}); err != nil {
			return apierr.Upstream(fmt.Errorf("update password: %w", err))
		}
		if err := as.resetRepo.MarkUsed(ctx, tx, reset.ID); err != nil {
			return apierr.Upstream(fmt.Errorf("mark reset used: %w", err))
		}
		// Every live session is revoked after a reset.
		if err := as.userTokenRepo.DeleteByUserID(ctx, tx, reset.UserID); err != nil {
			return apierr.Upstream(fmt.Errorf("revoke sessions: %w", err))
		}
		return nil
	})
}
