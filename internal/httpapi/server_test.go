// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/logging"
	"github.com/bestwishes/bestwishes/internal/upload"
)

var (
	_ AccountService = (*auth.Service)(nil)
	_ AccountService = (*mockAccounts)(nil)
	_ AssetStore     = (*upload.Uploader)(nil)
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Register(ctx context.Context, in auth.RegisterInput) (auth.PublicUser, error) {
	ret := m.Called(ctx, in)
	return ret.Get(0).(auth.PublicUser), ret.Error(1)
}

func (m *mockAccounts) Verify(ctx context.Context, rawID, otp string) (auth.PublicUser, error) {
	ret := m.Called(ctx, rawID, otp)
	return ret.Get(0).(auth.PublicUser), ret.Error(1)
}

func (m *mockAccounts) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAccounts) Login(ctx context.Context, email, password string) (auth.LoginResult, error) {
	ret := m.Called(ctx, email, password)
	return ret.Get(0).(auth.LoginResult), ret.Error(1)
}

func (m *mockAccounts) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAccounts) VerifyResetToken(ctx context.Context, rawID, secret string) (bool, error) {
	ret := m.Called(ctx, rawID, secret)
	return ret.Bool(0), ret.Error(1)
}

func (m *mockAccounts) ResetPassword(ctx context.Context, rawID, secret, newPassword string) error {
	return m.Called(ctx, rawID, secret, newPassword).Error(0)
}

func (m *mockAccounts) BecomeSeller(ctx context.Context, rawID string, in auth.SellerInput, assets []auth.Asset) (*auth.SellerAccount, error) {
	ret := m.Called(ctx, rawID, in, assets)
	s, _ := ret.Get(0).(*auth.SellerAccount)
	return s, ret.Error(1)
}

func (m *mockAccounts) GetSeller(ctx context.Context, rawID string) (*auth.SellerAccount, error) {
	ret := m.Called(ctx, rawID)
	s, _ := ret.Get(0).(*auth.SellerAccount)
	return s, ret.Error(1)
}

func (m *mockAccounts) AddProduct(ctx context.Context, rawID string, in auth.ProductInput, assets []auth.Asset) (*auth.Product, error) {
	ret := m.Called(ctx, rawID, in, assets)
	p, _ := ret.Get(0).(*auth.Product)
	return p, ret.Error(1)
}

type recordedRequest struct {
	route  string
	status int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (o *fakeObserver) ObserveRequest(route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, recordedRequest{route, status})
}

type harness struct {
	svc      *mockAccounts
	storage  *upload.MemoryStorage
	observer *fakeObserver
	logs     *bytes.Buffer
	handler  http.Handler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		svc:      &mockAccounts{},
		storage:  upload.NewMemoryStorage(),
		observer: &fakeObserver{},
		logs:     &bytes.Buffer{},
	}
	h.svc.Test(t)
	t.Cleanup(func() { h.svc.AssertExpectations(t) })

	logger := logging.Setup("bestwishes", "test", "json", slog.LevelDebug, h.logs)
	opts = append([]Option{WithLogger(logger), WithObserver(h.observer)}, opts...)
	h.handler = New(h.svc, upload.NewUploader(h.storage), opts...).Handler()
	return h
}

func (h *harness) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.serve(t, req)
}

func (h *harness) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type part struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, target string, values map[string]string, files ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStatusFor(t *testing.T) {
	rejected := func(reason string) error {
		return oops.Code(auth.CodeUploadRejected).With("reason", reason).Errorf("rejected")
	}
	tests := []struct {
		err  error
		want int
	}{
		{oops.Code(auth.CodeValidation).Errorf("x"), http.StatusBadRequest},
		{oops.Code(auth.CodeInvalidID).Errorf("x"), http.StatusBadRequest},
		{oops.Code(auth.CodeInvalidToken).Errorf("x"), http.StatusBadRequest},
		{oops.Code(auth.CodeWeakPassword).Errorf("x"), http.StatusBadRequest},
		{oops.Code(auth.CodeSamePassword).Errorf("x"), http.StatusBadRequest},
		{oops.Code(auth.CodeInvalidCredentials).Errorf("x"), http.StatusUnauthorized},
		{oops.Code(auth.CodeNotVerified).Errorf("x"), http.StatusForbidden},
		{oops.Code(auth.CodeNotFound).Errorf("x"), http.StatusNotFound},
		{oops.Code(auth.CodeDuplicateEmail).Errorf("x"), http.StatusConflict},
		{oops.Code(auth.CodeAlreadyVerified).Errorf("x"), http.StatusConflict},
		{oops.Code(auth.CodeAlreadySeller).Errorf("x"), http.StatusConflict},
		{rejected(upload.ReasonSize), http.StatusRequestEntityTooLarge},
		{rejected(upload.ReasonType), http.StatusUnsupportedMediaType},
		{rejected(upload.ReasonCount), http.StatusBadRequest},
		{oops.Code(auth.CodeStorageFailure).Errorf("x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", codeOr(tt.err, "none"), tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		in := auth.RegisterInput{FullName: "Jane", Email: "jane@x.com", Phone: "1", Password: "secret1"}
		h.svc.On("Register", mock.Anything, in).
			Return(auth.PublicUser{ID: "01HZY", Email: "jane@x.com"}, nil)

		rec, body := h.do(t, http.MethodPost, "/auth/register",
			`{"fullName":"Jane","email":"jane@x.com","phone":"1","password":"secret1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "jane@x.com", body["user"].(map[string]any)["email"])
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("validation errors carry fields", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("Register", mock.Anything, mock.Anything).Return(auth.PublicUser{},
			auth.FieldErrors{"email": "invalid email"}.Err())

		rec, body := h.do(t, http.MethodPost, "/auth/register", `{"email":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, auth.CodeValidation, body["code"])
		assert.Equal(t, "invalid email", body["fields"].(map[string]any)["email"])
	})

	t.Run("malformed json", func(t *testing.T) {
		h := newHarness(t)
		rec, body := h.do(t, http.MethodPost, "/auth/register", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeMalformedBody, body["code"])
	})

	t.Run("oversized body", func(t *testing.T) {
		h := newHarness(t, WithMaxBodyBytes(16))
		rec, body := h.do(t, http.MethodPost, "/auth/register", `{"fullName":"`+strings.Repeat("a", 64)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, auth.CodeUploadRejected, body["code"])
	})

	t.Run("storage failure is generic and logged", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("Register", mock.Anything, mock.Anything).Return(auth.PublicUser{},
			oops.Code(auth.CodeStorageFailure).Wrap(errors.New("connection refused to 10.0.0.5")))

		rec, body := h.do(t, http.MethodPost, "/auth/register", `{}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", body["error"])
		assert.Equal(t, auth.CodeStorageFailure, body["code"])
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		assert.Contains(t, h.logs.String(), "10.0.0.5")
	})
}

func TestVerify(t *testing.T) {
	h := newHarness(t)
	h.svc.On("Verify", mock.Anything, "01HZY", "123456").Return(auth.PublicUser{ID: "01HZY", Verified: true}, nil)
	h.svc.On("Verify", mock.Anything, "01HZY", "000000").Return(auth.PublicUser{},
		oops.Code(auth.CodeInvalidToken).Errorf("Invalid OTP"))

	rec, body := h.do(t, http.MethodPost, "/auth/verify?userId=01HZY", `{"otp":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account Verified Successfully.", body["message"])

	rec, body = h.do(t, http.MethodPost, "/auth/verify?userId=01HZY", `{"otp":"000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OTP", body["error"])
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", oops.Code(auth.CodeNotFound).Errorf("user not found"), http.StatusNotFound},
		{"not verified", oops.Code(auth.CodeNotVerified).Errorf("Please verify your account"), http.StatusForbidden},
		{"bad password", oops.Code(auth.CodeInvalidCredentials).Errorf("Invalid credentials"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.svc.On("Login", mock.Anything, "jane@x.com", "pw").Return(auth.LoginResult{}, tt.err)
			rec, body := h.do(t, http.MethodPost, "/auth/login", `{"email":"jane@x.com","password":"pw"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("Login", mock.Anything, "jane@x.com", "pw").
			Return(auth.LoginResult{Token: "jwt", User: auth.PublicUser{ID: "01HZY"}}, nil)
		rec, body := h.do(t, http.MethodPost, "/auth/login", `{"email":"jane@x.com","password":"pw"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "jwt", body["token"])
		assert.Equal(t, "01HZY", body["user"].(map[string]any)["id"])
	})
}

func TestForgotAndResend(t *testing.T) {
	h := newHarness(t)
	h.svc.On("ForgotPassword", mock.Anything, "jane@x.com").Return(nil)
	h.svc.On("ResendVerification", mock.Anything, "jane@x.com").Return(nil)

	rec, _ := h.do(t, http.MethodPost, "/auth/forgot", `{"email":"jane@x.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/auth/verify/resend", `{"email":"jane@x.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyToken(t *testing.T) {
	h := newHarness(t)
	h.svc.On("VerifyResetToken", mock.Anything, "01HZY", "good").Return(true, nil)
	h.svc.On("VerifyResetToken", mock.Anything, "01HZY", "bad").Return(false, nil)

	rec, body := h.do(t, http.MethodGet, "/auth/verify-token?token=good&id=01HZY", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = h.do(t, http.MethodPost, "/auth/verify-token", `{"token":"bad","id":"01HZY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, auth.CodeInvalidToken, body["code"])
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	h.svc.On("ResetPassword", mock.Anything, "01HZY", "tok", "newsecret").Return(nil)
	h.svc.On("ResetPassword", mock.Anything, "01HZY", "tok", "abc").
		Return(oops.Code(auth.CodeWeakPassword).Errorf("Password must be at least 6 characters long"))

	rec, body := h.do(t, http.MethodPost, "/auth/reset-password", `{"token":"tok","id":"01HZY","password":"newsecret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password Reset Successfully", body["message"])

	rec, _ = h.do(t, http.MethodPost, "/auth/reset-password?token=tok&id=01HZY", `{"password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func sellerValues() map[string]string {
	return map[string]string{
		"sellerName": "Jane", "storeName": "Jane's", "storeAddress": "1 Main St",
		"storePhone": "555", "country": "NG", "city": "Lagos",
	}
}

func TestBecomeSeller(t *testing.T) {
	id := ulid.Make().String()

	t.Run("stores files in field order and onboards", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("BecomeSeller", mock.Anything, id,
			auth.SellerInput{
				SellerName: "Jane", StoreName: "Jane's", StoreAddress: "1 Main St",
				StorePhone: "555", Country: "NG", City: "Lagos",
			},
			mock.MatchedBy(func(assets []auth.Asset) bool {
				return len(assets) == 2 && assets[0].Field == "productIMAGE" && assets[1].Field == "businessIMAGE"
			})).Return(&auth.SellerAccount{StoreName: "Jane's"}, nil)

		req := multipartRequest(t, "/auth/seller?userID="+id, sellerValues(),
			part{"businessIMAGE", "b.png", "image/png", pngBytes},
			part{"productIMAGE", "p.png", "image/png", pngBytes},
		)
		rec, body := h.serve(t, req)

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, body["isSeller"])
		assert.Equal(t, "Jane's", body["sellerData"].(map[string]any)["storeName"])
	})

	t.Run("invalid id is rejected before upload", func(t *testing.T) {
		h := newHarness(t)
		req := multipartRequest(t, "/auth/seller?userID=nope", sellerValues(),
			part{"productIMAGE", "p.png", "image/png", pngBytes})
		rec, body := h.serve(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, auth.CodeInvalidID, body["code"])
	})

	t.Run("wrong format", func(t *testing.T) {
		h := newHarness(t)
		req := multipartRequest(t, "/auth/seller?userID="+id, sellerValues(),
			part{"productIMAGE", "p.gif", "image/gif", []byte("GIF89a....")})
		rec, body := h.serve(t, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "Wrong Format", body["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		h := newHarness(t)
		rec, body := h.do(t, http.MethodPost, "/auth/seller?userID="+id, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeMalformedBody, body["code"])
	})
}

func TestGetSeller(t *testing.T) {
	h := newHarness(t)
	h.svc.On("GetSeller", mock.Anything, "01HZY").
		Return(nil, oops.Code(auth.CodeNotFound).Errorf("seller account not found"))

	rec, body := h.do(t, http.MethodGet, "/auth/get-seller?userID=01HZY", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "seller account not found", body["error"])
}

func TestAddProduct(t *testing.T) {
	id := ulid.Make().String()

	t.Run("missing fields skip the upload", func(t *testing.T) {
		h := newHarness(t)
		req := multipartRequest(t, "/auth/add-product?userID="+id, map[string]string{"productName": "Vase"},
			part{"proFrontIMAGE", "f.png", "image/png", pngBytes})
		rec, body := h.serve(t, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["fields"], "productPrice")
		assert.Zero(t, h.storage.Len())
	})

	t.Run("creates product", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("AddProduct", mock.Anything, id,
			auth.ProductInput{Name: "Vase", Price: "25", Category: "home"}, mock.Anything).
			Return(&auth.Product{Name: "Vase"}, nil)
		req := multipartRequest(t, "/auth/add-product?userID="+id,
			map[string]string{"productName": "Vase", "productPrice": "25", "productCategory": "home"},
			part{"proFrontIMAGE", "f.png", "image/png", pngBytes})
		rec, body := h.serve(t, req)

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Product Created Successful.", body["message"])
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("request id passes through", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("ForgotPassword", mock.Anything, "").Return(oops.Code(auth.CodeValidation).Errorf("missing parameters"))

		req := httptest.NewRequest(http.MethodPost, "/auth/forgot", strings.NewReader(`{}`))
		req.Header.Set(RequestIDHeader, "req-123")
		rec, _ := h.serve(t, req)

		assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
		assert.Contains(t, h.logs.String(), `"request_id"`)
	})

	t.Run("observer sees route patterns", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodGet, "/nowhere", "")
		h.svc.On("GetSeller", mock.Anything, "x").Return(nil, oops.Code(auth.CodeInvalidID).Errorf("invalid user ID"))
		h.do(t, http.MethodGet, "/auth/get-seller?userID=x", "")

		require.Len(t, h.observer.seen, 2)
		assert.Equal(t, recordedRequest{"unmatched", http.StatusNotFound}, h.observer.seen[0])
		assert.Contains(t, h.logs.String(), `"route":"GET /auth/get-seller"`)
		assert.Equal(t, recordedRequest{"GET /auth/get-seller", http.StatusBadRequest}, h.observer.seen[1])
	})

	t.Run("panic becomes 500", func(t *testing.T) {
		h := newHarness(t)
		h.svc.On("ForgotPassword", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })
		rec, body := h.do(t, http.MethodPost, "/auth/forgot", `{}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", body["error"])
	})

	t.Run("serves local uploads", func(t *testing.T) {
		files := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("file:" + r.URL.Path))
		})
		h := newHarness(t, WithFiles("/uploads/", files))
		rec, _ := h.do(t, http.MethodGet, "/uploads/a.png-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "file:a.png-1", rec.Body.String())
	})
}
