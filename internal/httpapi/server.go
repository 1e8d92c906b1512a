// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package httpapi exposes the account operations over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/upload"
)

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

// maxMultipartFiles is the most files any upload policy accepts.
const maxMultipartFiles = 5

// AccountService is the account facade served by the API.
type AccountService interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.PublicUser, error)
	Verify(ctx context.Context, rawID, otp string) (auth.PublicUser, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, rawID, secret string) (bool, error)
	ResetPassword(ctx context.Context, rawID, secret, newPassword string) error
	BecomeSeller(ctx context.Context, rawID string, in auth.SellerInput, assets []auth.Asset) (*auth.SellerAccount, error)
	GetSeller(ctx context.Context, rawID string) (*auth.SellerAccount, error)
	AddProduct(ctx context.Context, rawID string, in auth.ProductInput, assets []auth.Asset) (*auth.Product, error)
}

// AssetStore stores the files of a multipart request.
type AssetStore interface {
	Store(ctx context.Context, policy upload.Policy, files []upload.File) ([]auth.Asset, error)
}

// RequestObserver records finished requests, typically as metrics.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Server routes API requests to an AccountService.
type Server struct {
	svc          AccountService
	assets       AssetStore
	logger       *slog.Logger
	observer     RequestObserver
	maxBodyBytes int64
	files        http.Handler
	filesPrefix  string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithObserver records every request on o.
func WithObserver(o RequestObserver) Option {
	return func(s *Server) { s.observer = o }
}

// WithMaxBodyBytes bounds JSON request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithFiles serves locally stored uploads under prefix, e.g. "/uploads/".
func WithFiles(prefix string, h http.Handler) Option {
	return func(s *Server) {
		s.filesPrefix = prefix
		s.files = h
	}
}

// New creates a Server.
func New(svc AccountService, assets AssetStore, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		assets:       assets,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with request id, logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/verify", s.handleVerify)
	mux.HandleFunc("POST /auth/verify/resend", s.handleResend)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/forgot", s.handleForgot)
	mux.HandleFunc("GET /auth/verify-token", s.handleVerifyToken)
	mux.HandleFunc("POST /auth/verify-token", s.handleVerifyToken)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /auth/seller", s.handleBecomeSeller)
	mux.HandleFunc("GET /auth/get-seller", s.handleGetSeller)
	mux.HandleFunc("POST /auth/add-product", s.handleAddProduct)
	if s.files != nil {
		mux.Handle("GET "+s.filesPrefix, http.StripPrefix(s.filesPrefix, s.files))
	}
	return s.requestID(s.recoverer(s.instrument(mux)))
}

// multipartLimit bounds a whole multipart request.
func (s *Server) multipartLimit() int64 {
	return maxMultipartFiles*upload.MaxFileBytes + s.maxBodyBytes
}
