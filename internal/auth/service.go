package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/custody_vault/internal/config"
	"github.com/congo-pay/custody_vault/internal/identity"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, forged, expired and revoked tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Service issues and verifies caller tokens bound to an account address.
type Service struct {
	cfg    config.Config
	idRepo identity.Repository
	now    func() time.Time
}

// NewService builds a token service.
func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

// TokenPair is returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues an access/refresh pair for an authenticated credential.
func (s *Service) Login(cred identity.Credential) (TokenPair, error) {
	access, err := s.sign(cred.Account, cred.TokenVersion, tokenTypeAccess, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(cred.Account, cred.TokenVersion, tokenTypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(account common.Address, version int, typ, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := map[string]any{
		"sub": account.Hex(),
		"ver": version,
		"typ": typ,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return SignHS256(claims, []byte(secret))
}

// Refresh verifies the refresh token and returns a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	account, version, err := s.verify(ctx, refreshToken, tokenTypeRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	signed, err := s.sign(account, version, tokenTypeAccess, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// VerifyAccess returns the account an access token was issued to.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (common.Address, error) {
	account, _, err := s.verify(ctx, accessToken, tokenTypeAccess, s.cfg.JWTSecret)
	return account, err
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, account common.Address) error {
	cred, err := s.idRepo.FindByAccount(ctx, account)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, account, cred.TokenVersion+1)
}

func (s *Service) verify(ctx context.Context, token, typ, secret string) (common.Address, int, error) {
	claims, err := ParseAndVerifyHS256(token, []byte(secret))
	if err != nil {
		return common.Address{}, 0, ErrInvalidToken
	}
	if t, _ := claims["typ"].(string); t != typ {
		return common.Address{}, 0, ErrInvalidToken
	}
	exp, _ := claims["exp"].(float64)
	if s.now().Unix() >= int64(exp) {
		return common.Address{}, 0, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if !common.IsHexAddress(sub) {
		return common.Address{}, 0, ErrInvalidToken
	}
	verFloat, _ := claims["ver"].(float64)
	ver := int(verFloat)

	account := common.HexToAddress(sub)
	cred, err := s.idRepo.FindByAccount(ctx, account)
	if err != nil || cred.TokenVersion != ver {
		return common.Address{}, 0, ErrInvalidToken
	}
	return account, ver, nil
}
