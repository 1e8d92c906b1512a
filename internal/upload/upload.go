// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package upload checks and stores the media files attached to seller
// onboarding and product listings.
package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// MaxFileBytes is the default per-file size limit.
const MaxFileBytes = 20 << 20

// sniffLen is how much of a body http.DetectContentType looks at.
const sniffLen = 512

// Rejection reasons carried in the "reason" context of UPLOAD_REJECTED errors.
const (
	ReasonType  = "type"
	ReasonSize  = "size"
	ReasonField = "field"
	ReasonCount = "count"
)

// DefaultAllowedTypes are the accepted image types.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/jpg"}

// File is one uploaded part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Policy restricts what an upload may contain. Fields maps each accepted
// form field to the number of files it may carry; Order fixes the order in
// which stored assets are returned.
type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
	Fields       map[string]int
	Order        []string
}

// SellerPolicy accepts the seller onboarding fields, one file each.
func SellerPolicy() Policy {
	return fieldsPolicy("productIMAGE", "productVIDEO", "businessIMAGE", "businessVIDEO", "certificateIMAGE")
}

// ProductPolicy accepts the four product photo fields, one file each.
func ProductPolicy() Policy {
	return fieldsPolicy("proFrontIMAGE", "proBackIMAGE", "proUpwardIMAGE", "proDownWardIMAGE")
}

func fieldsPolicy(names ...string) Policy {
	fields := make(map[string]int, len(names))
	for _, n := range names {
		fields[n] = 1
	}
	return Policy{
		AllowedTypes: DefaultAllowedTypes,
		MaxBytes:     MaxFileBytes,
		Fields:       fields,
		Order:        names,
	}
}

// Check validates declared metadata of every file without reading bodies.
func (p Policy) Check(files []File) error {
	counts := make(map[string]int, len(p.Fields))
	for _, f := range files {
		limit, ok := p.Fields[f.Field]
		if !ok {
			return reject(ReasonField, f).Errorf("unexpected file field %q", f.Field)
		}
		counts[f.Field]++
		if counts[f.Field] > limit {
			return reject(ReasonCount, f).With("max", limit).Errorf("too many files for %q", f.Field)
		}
		if !p.allowed(f.ContentType) {
			return reject(ReasonType, f).With("content_type", f.ContentType).Errorf("Wrong Format")
		}
		if p.MaxBytes > 0 && f.Size > p.MaxBytes {
			return reject(ReasonSize, f).With("max_bytes", p.MaxBytes).Errorf("file %q is too large", f.Name)
		}
	}
	return nil
}

func (p Policy) allowed(contentType string) bool {
	ct := normalizeType(contentType)
	for _, a := range p.AllowedTypes {
		if normalizeType(a) == ct {
			return true
		}
	}
	return false
}

// normalizeType drops parameters and folds the image/jpg alias.
func normalizeType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}

func reject(reason string, f File) oops.OopsErrorBuilder {
	return oops.Code(auth.CodeUploadRejected).
		With("reason", reason).
		With("field", f.Field).
		With("file", f.Name)
}

// Storage persists an object and returns the URL it can be fetched from.
type Storage interface {
	Put(ctx context.Context, obj Object) (string, error)
}

// Object is a file on its way to storage.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
	// Metadata is attached to the stored object where the backend supports it.
	Metadata map[string]string
}

// Uploader applies a Policy and writes accepted files to a Storage.
type Uploader struct {
	storage Storage
	now     func() time.Time
}

// NewUploader creates an Uploader.
func NewUploader(storage Storage) *Uploader {
	return &Uploader{storage: storage, now: time.Now}
}

// Store checks files against policy, confirms each body's real type by
// sniffing, and stores them under "<original name>-<field>-<unix millis>". Assets
// come back in policy field order.
func (u *Uploader) Store(ctx context.Context, policy Policy, files []File) ([]auth.Asset, error) {
	if err := policy.Check(files); err != nil {
		return nil, err
	}

	byField := make(map[string][]auth.Asset, len(files))
	for _, f := range files {
		body := bufio.NewReaderSize(f.Body, sniffLen)
		head, err := body.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, oops.Code(auth.CodeUploadRejected).
				With("reason", "read").
				With("field", f.Field).
				Wrap(err)
		}
		if sniffed := http.DetectContentType(head); !policy.allowed(sniffed) {
			return nil, reject(ReasonType, f).With("detected", sniffed).Errorf("Wrong Format")
		}

		var r io.Reader = body
		if policy.MaxBytes > 0 {
			r = &limitedReader{r: body, remaining: policy.MaxBytes, file: f}
		}

		url, err := u.storage.Put(ctx, Object{
			Key:         u.key(f.Field, f.Name),
			ContentType: normalizeType(f.ContentType),
			Size:        f.Size,
			Body:        r,
			Metadata:    map[string]string{"filename": f.Field},
		})
		if err != nil {
			if errutil.Code(err) == auth.CodeUploadRejected {
				return nil, err
			}
			return nil, oops.Code(auth.CodeStorageFailure).
				With("operation", "store upload").
				With("field", f.Field).
				Wrap(err)
		}
		byField[f.Field] = append(byField[f.Field], auth.Asset{Field: f.Field, URL: url})
	}

	assets := make([]auth.Asset, 0, len(files))
	for _, field := range policy.Order {
		assets = append(assets, byField[field]...)
	}
	return assets, nil
}

// key keeps the field in the name so two fields uploading the same file
// name in one millisecond do not overwrite each other.
func (u *Uploader) key(field, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%s-%s-%d", base, field, u.now().UnixMilli())
}

// limitedReader fails once more than remaining bytes are read, so a file
// whose declared size understates its body is still cut off.
type limitedReader struct {
	r         io.Reader
	remaining int64
	file      File
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, reject(ReasonSize, l.file).Errorf("file %q is too large", l.file.Name)
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, reject(ReasonSize, l.file).Errorf("file %q is too large", l.file.Name)
	}
	return n, err
}
