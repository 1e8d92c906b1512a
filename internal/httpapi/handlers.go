// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/upload"
)

type okBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type userBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	User    auth.PublicUser `json:"user"`
}

type loginBody struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    auth.PublicUser `json:"user"`
}

type sellerBody struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	IsSeller   bool                `json:"isSeller"`
	SellerData *auth.SellerAccount `json:"sellerData"`
}

type productBody struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Product *auth.Product `json:"product"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	OTP string `json:"otp"`
}

type resetRequest struct {
	Token    string `json:"token"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

// userID reads the user id query parameter under any of the spellings the
// clients use.
func userID(r *http.Request) string {
	q := r.URL.Query()
	for _, name := range []string{"userId", "userID", "id"} {
		if v := q.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	user, err := s.svc.Register(r.Context(), in)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, userBody{
		Success: true,
		Message: "Verification code sent to your email",
		User:    user,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	var in otpRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	user, err := s.svc.Verify(r.Context(), userID(r), in.OTP)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, userBody{
		Success: true,
		Message: "Account Verified Successfully.",
		User:    user,
	})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	if err := s.svc.ResendVerification(r.Context(), in.Email); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, okBody{
		Success: true,
		Message: "If the account exists a new code has been sent",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	res, err := s.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, loginBody{Success: true, Token: res.Token, User: res.User})
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	if err := s.svc.ForgotPassword(r.Context(), in.Email); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, okBody{
		Success: true,
		Message: "Password reset link is sent to your email.",
	})
}

// resetParams reads token and id from the JSON body, falling back to the
// query string used by reset links.
func (s *Server) resetParams(w http.ResponseWriter, r *http.Request) (resetRequest, error) {
	var in resetRequest
	if r.Method == http.MethodPost {
		s.limitBody(w, r)
		if err := decodeJSON(r, &in); err != nil {
			return in, err
		}
	}
	if in.Token == "" {
		in.Token = r.URL.Query().Get("token")
	}
	if in.ID == "" {
		in.ID = userID(r)
	}
	return in, nil
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	in, err := s.resetParams(w, r)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	ok, err := s.svc.VerifyResetToken(r.Context(), in.ID, in.Token)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	if !ok {
		writeError(r.Context(), s.logger, w, oops.Code(auth.CodeInvalidToken).Errorf("Reset token is not valid"))
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, okBody{Success: true})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	in, err := s.resetParams(w, r)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	if err := s.svc.ResetPassword(r.Context(), in.ID, in.Token, in.Password); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, okBody{Success: true, Message: "Password Reset Successfully"})
}

func (s *Server) handleBecomeSeller(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	if _, err := auth.ParseID(id); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	form, err := s.readMultipart(w, r)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	defer form.Close()

	in := auth.SellerInput{
		SellerName:   form.value("sellerName"),
		StoreName:    form.value("storeName"),
		StoreAddress: form.value("storeAddress"),
		StorePhone:   form.value("storePhone"),
		Country:      form.value("country"),
		DOB:          form.value("dob"),
		City:         form.value("city"),
	}
	if err := in.Validate(); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	assets, err := s.assets.Store(r.Context(), upload.SellerPolicy(), form.files)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}

	seller, err := s.svc.BecomeSeller(r.Context(), id, in, assets)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, sellerBody{
		Success:    true,
		Message:    "Seller Account Created Successful.",
		IsSeller:   true,
		SellerData: seller,
	})
}

func (s *Server) handleGetSeller(w http.ResponseWriter, r *http.Request) {
	seller, err := s.svc.GetSeller(r.Context(), userID(r))
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, sellerBody{Success: true, IsSeller: true, SellerData: seller})
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	if _, err := auth.ParseID(id); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	form, err := s.readMultipart(w, r)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	defer form.Close()

	in := auth.ProductInput{
		Name:          form.value("productName"),
		Price:         form.value("productPrice"),
		Quality:       form.value("productQuality"),
		Detail:        form.value("productDetail"),
		Origin:        form.value("productOrigin"),
		Category:      form.value("productCategory"),
		DeliveryTime:  form.value("productDeliveryTime"),
		Specification: form.value("productSpecification"),
	}
	if err := in.Validate(); err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	assets, err := s.assets.Store(r.Context(), upload.ProductPolicy(), form.files)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}

	product, err := s.svc.AddProduct(r.Context(), id, in, assets)
	if err != nil {
		writeError(r.Context(), s.logger, w, err)
		return
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, productBody{
		Success: true,
		Message: "Product Created Successful.",
		Product: product,
	})
}

// parts is a parsed multipart form and its opened file parts.
type parts struct {
	form  *multipart.Form
	files []upload.File
	open  []multipart.File
}

func (p *parts) value(name string) string {
	if v := p.form.Value[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Close closes every opened part and removes spooled temporary files.
func (p *parts) Close() {
	for _, f := range p.open {
		_ = f.Close()
	}
	_ = p.form.RemoveAll()
}

// readMultipart parses a multipart request and opens every file part.
func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (*parts, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.multipartLimit())
	if err := r.ParseMultipartForm(s.maxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, oops.Code(auth.CodeUploadRejected).
				With("reason", upload.ReasonSize).
				With("max_bytes", tooLarge.Limit).
				Errorf("request body too large")
		}
		return nil, oops.Code(CodeMalformedBody).Wrap(err)
	}

	p := &parts{form: r.MultipartForm}
	for field, headers := range p.form.File {
		for _, h := range headers {
			f, err := h.Open()
			if err != nil {
				p.Close()
				return nil, oops.Code(CodeMalformedBody).With("field", field).Wrap(err)
			}
			p.open = append(p.open, f)
			p.files = append(p.files, upload.File{
				Field:       field,
				Name:        h.Filename,
				ContentType: h.Header.Get("Content-Type"),
				Size:        h.Size,
				Body:        f,
			})
		}
	}
	return p, nil
}
