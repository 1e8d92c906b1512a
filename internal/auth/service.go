// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bestwishes/bestwishes/internal/notify"
	"github.com/bestwishes/bestwishes/internal/token"
	"github.com/bestwishes/bestwishes/pkg/errutil"
)

var tracer = otel.Tracer("bestwishes/auth")

// TokenLedger issues and redeems single-use challenge tokens.
type TokenLedger interface {
	Issue(ctx context.Context, owner string, purpose token.Purpose) (string, error)
	Validate(ctx context.Context, owner string, purpose token.Purpose, secret string) bool
	Consume(ctx context.Context, owner string, purpose token.Purpose, secret string) (bool, error)
	Revoke(ctx context.Context, owner string, purpose token.Purpose) error
}

// SessionSigner issues the bearer token returned by Login.
type SessionSigner interface {
	Sign(userID, email string) (string, error)
}

// Notifier queues an email. It never reports delivery failures.
type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message)
}

// Deps are the collaborators of a Service. Hasher and Logger are optional.
type Deps struct {
	Users    UserRepository
	Sellers  SellerRepository
	Products ProductRepository
	Tokens   TokenLedger
	Hasher   PasswordHasher
	Sessions SessionSigner
	Notifier Notifier
	Logger   *slog.Logger
}

// Config holds Service settings.
type Config struct {
	// ResetURL is the page that receives ?token=&id= from the reset email.
	ResetURL string
	// RequireSellerForProducts restricts AddProduct to seller accounts.
	RequireSellerForProducts bool
}

// Service implements the account operations.
type Service struct {
	users    UserRepository
	sellers  SellerRepository
	products ProductRepository
	tokens   TokenLedger
	hasher   PasswordHasher
	sessions SessionSigner
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  PublicUser
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Errorf("user repository is required")
	case deps.Sellers == nil:
		return nil, oops.Errorf("seller repository is required")
	case deps.Products == nil:
		return nil, oops.Errorf("product repository is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("token ledger is required")
	case deps.Sessions == nil:
		return nil, oops.Errorf("session signer is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("notifier is required")
	}
	if deps.Hasher == nil {
		deps.Hasher = NewArgon2idHasher()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		users:    deps.Users,
		sellers:  deps.Sellers,
		products: deps.Products,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		cfg:      cfg,
	}, nil
}

// Register creates an unverified account and emails its verification code.
// If the code cannot be issued the account is kept and ResendVerification
// recovers it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return PublicUser{}, err
	}

	email := NormalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return PublicUser{}, duplicateEmail(email)
	} else if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, storageFailure("get user by email", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return PublicUser{}, storageFailure("hash password", err)
	}
	user, err := NewUser(in.FullName, email, in.Phone, hash)
	if err != nil {
		return PublicUser{}, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return PublicUser{}, duplicateEmail(email)
		}
		return PublicUser{}, storageFailure("create user", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	otp, err := s.tokens.Issue(ctx, user.ID.String(), token.PurposeVerify)
	if err != nil {
		s.logger.WarnContext(ctx, "user created without verification code", "user_id", user.ID.String())
		return PublicUser{}, storageFailure("issue verification code", err)
	}
	s.notifier.Dispatch(ctx, notify.WelcomeMessage(recipient(user), otp))

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user.Public(), nil
}

// Verify redeems a verification code and marks the account verified.
func (s *Service) Verify(ctx context.Context, rawID, otp string) (_ PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.verify")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"userId": rawID, "otp": otp}); err != nil {
		return PublicUser{}, err
	}
	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return PublicUser{}, err
	}
	if _, err := user.State().MarkVerified(); err != nil {
		return PublicUser{}, err
	}

	ok, err := s.tokens.Consume(ctx, user.ID.String(), token.PurposeVerify, otp)
	if err != nil {
		return PublicUser{}, storageFailure("consume verification code", err)
	}
	if !ok {
		return PublicUser{}, oops.Code(CodeInvalidToken).With("user_id", user.ID.String()).Errorf("Invalid OTP")
	}

	if err := s.users.SetVerified(ctx, user.ID); err != nil {
		return PublicUser{}, storageFailure("set verified", err)
	}
	user.Verified = true
	s.notifier.Dispatch(ctx, notify.VerifiedMessage(recipient(user)))

	s.logger.InfoContext(ctx, "user verified", "user_id", user.ID.String())
	return user.Public(), nil
}

// ResendVerification issues a fresh verification code, superseding the
// previous one. Unknown addresses succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.resend_verification")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"email": email}); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "verification resend for unknown email")
		return nil
	}
	if err != nil {
		return storageFailure("get user by email", err)
	}
	if _, err := user.State().MarkVerified(); err != nil {
		return err
	}

	otp, err := s.tokens.Issue(ctx, user.ID.String(), token.PurposeVerify)
	if err != nil {
		return storageFailure("issue verification code", err)
	}
	s.notifier.Dispatch(ctx, notify.WelcomeMessage(recipient(user), otp))
	return nil
}

// Login checks credentials of a verified account and returns a session
// token. Hashes from an older scheme are upgraded on success.
func (s *Service) Login(ctx context.Context, email, password string) (_ LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"email": email, "password": password}); err != nil {
		return LoginResult{}, err
	}
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, oops.Code(CodeNotFound).Errorf("user not found")
	}
	if err != nil {
		return LoginResult{}, storageFailure("get user by email", err)
	}
	if !user.Verified {
		return LoginResult{}, oops.Code(CodeNotVerified).
			With("user_id", user.ID.String()).
			Errorf("Please verify your account")
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, storageFailure("verify password", err)
	}
	if !ok {
		return LoginResult{}, oops.Code(CodeInvalidCredentials).Errorf("Invalid credentials")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	signed, err := s.sessions.Sign(user.ID.String(), user.Email)
	if err != nil {
		return LoginResult{}, storageFailure("sign session", err)
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return LoginResult{Token: signed, User: user.Public()}, nil
}

// upgradeHash rehashes password with the current scheme. Failures are
// logged; the login still succeeds.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

// ForgotPassword emails a reset link. Unknown addresses succeed without
// sending anything.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.forgot_password")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"email": email}); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return storageFailure("get user by email", err)
	}

	secret, err := s.tokens.Issue(ctx, user.ID.String(), token.PurposeReset)
	if err != nil {
		return storageFailure("issue reset token", err)
	}
	link := notify.ResetLink(s.cfg.ResetURL, secret, user.ID.String())
	s.notifier.Dispatch(ctx, notify.PasswordResetMessage(recipient(user), link))
	return nil
}

// VerifyResetToken reports whether a reset link is still usable without
// consuming it.
func (s *Service) VerifyResetToken(ctx context.Context, rawID, secret string) (_ bool, err error) {
	ctx, span := tracer.Start(ctx, "auth.verify_reset_token")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"id": rawID, "token": secret}); err != nil {
		return false, err
	}
	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return false, err
	}
	return s.tokens.Validate(ctx, user.ID.String(), token.PurposeReset, secret), nil
}

// ResetPassword sets a new password using a reset link. The password rules
// are checked before the link is consumed.
func (s *Service) ResetPassword(ctx context.Context, rawID, secret, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer func() { endSpan(span, err) }()

	if err := requireFields(map[string]string{"id": rawID, "token": secret, "password": newPassword}); err != nil {
		return err
	}
	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return err
	}

	if TooShort(newPassword) {
		return oops.Code(CodeWeakPassword).
			With("min_length", MinPasswordLength).
			Errorf("Password must be at least %d characters long", MinPasswordLength)
	}
	same, err := s.hasher.Verify(newPassword, user.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored password hash unreadable", "user_id", user.ID.String(), "error", err)
	}
	if same {
		return oops.Code(CodeSamePassword).Errorf("New password must be different")
	}

	ok, err := s.tokens.Consume(ctx, user.ID.String(), token.PurposeReset, secret)
	if err != nil {
		return storageFailure("consume reset token", err)
	}
	if !ok {
		return oops.Code(CodeInvalidToken).With("user_id", user.ID.String()).Errorf("Reset token is not valid")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return storageFailure("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return storageFailure("update password", err)
	}
	if err := s.tokens.Revoke(ctx, user.ID.String(), token.PurposeReset); err != nil {
		s.logger.WarnContext(ctx, "reset token cleanup failed", "user_id", user.ID.String(), "error", err)
	}
	s.notifier.Dispatch(ctx, notify.PasswordChangedMessage(recipient(user)))

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// BecomeSeller attaches a seller account to a user and flips the user to
// seller. A user can onboard at most once.
func (s *Service) BecomeSeller(ctx context.Context, rawID string, in SellerInput, assets []Asset) (_ *SellerAccount, err error) {
	ctx, span := tracer.Start(ctx, "auth.become_seller")
	defer func() { endSpan(span, err) }()

	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if _, err := user.State().MarkSeller(); err != nil {
		return nil, err
	}
	seller, err := NewSellerAccount(user.ID, in, assets)
	if err != nil {
		return nil, err
	}

	if err := s.sellers.Create(ctx, seller); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeAlreadySeller).With("user_id", user.ID.String()).Errorf("Already a seller")
		}
		return nil, storageFailure("create seller account", err)
	}
	if err := s.users.SetSeller(ctx, user.ID); err != nil {
		return nil, storageFailure("set seller", err)
	}

	s.logger.InfoContext(ctx, "seller onboarded", "user_id", user.ID.String(), "seller_id", seller.ID.String())
	return seller, nil
}

// GetSeller returns the seller account of a user.
func (s *Service) GetSeller(ctx context.Context, rawID string) (_ *SellerAccount, err error) {
	ctx, span := tracer.Start(ctx, "auth.get_seller")
	defer func() { endSpan(span, err) }()

	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return nil, err
	}
	seller, err := s.sellers.GetByOwner(ctx, user.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeNotFound).With("user_id", user.ID.String()).Errorf("seller account not found")
	}
	if err != nil {
		return nil, storageFailure("get seller account", err)
	}
	return seller, nil
}

// AddProduct lists a product for a user.
func (s *Service) AddProduct(ctx context.Context, rawID string, in ProductInput, assets []Asset) (_ *Product, err error) {
	ctx, span := tracer.Start(ctx, "auth.add_product")
	defer func() { endSpan(span, err) }()

	user, err := s.resolve(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if s.cfg.RequireSellerForProducts && !user.IsSeller {
		return nil, oops.Code(CodeValidation).
			With("fields", map[string]string{"userID": "seller account required"}).
			Errorf("seller account required")
	}
	product, err := NewProduct(user.ID, in, assets)
	if err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, userNotFound(user.ID)
		}
		return nil, storageFailure("create product", err)
	}

	s.logger.InfoContext(ctx, "product created", "user_id", user.ID.String(), "product_id", product.ID.String())
	return product, nil
}

// resolve validates rawID and loads the user.
func (s *Service) resolve(ctx context.Context, rawID string) (*User, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", id.String()))

	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, storageFailure("get user by id", err)
	}
	return user, nil
}

func requireFields(fields map[string]string) error {
	fe := FieldErrors{}
	for name, value := range fields {
		fe.require(name, value)
	}
	if len(fe) == 0 {
		return nil
	}
	return oops.Code(CodeValidation).With("fields", map[string]string(fe)).Errorf("missing parameters")
}

func recipient(u *User) notify.Recipient {
	return notify.Recipient{Email: u.Email, Name: u.FullName}
}

func userNotFound(id ulid.ULID) error {
	return oops.Code(CodeNotFound).With("user_id", id.String()).Errorf("user not found")
}

func duplicateEmail(email string) error {
	return oops.Code(CodeDuplicateEmail).With("email", email).Errorf("email already exist")
}

// storageFailure reports an infrastructure error. oops reports the deepest
// code in a chain, so a cause that already carries a code is recorded as
// context instead of wrapped.
func storageFailure(operation string, err error) error {
	b := oops.Code(CodeStorageFailure).With("operation", operation)
	cause := errutil.Code(err)
	if cause == "" {
		return b.Wrap(err)
	}
	return b.With("cause", err.Error()).With("cause_code", cause).Errorf("%s failed", operation)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
