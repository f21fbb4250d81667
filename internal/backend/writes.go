package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/medihope/portal/internal/forms"
)

// WriteResult is the backend's answer to a save or update. Msg is the
// server text, passed on unchanged.
type WriteResult struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// SaveDonor registers a donor profile.
func (c *Client) SaveDonor(ctx context.Context, form *forms.Form) (WriteResult, error) {
	return c.submit(ctx, PathDonorSave, form)
}

// UpdateDonor updates a donor profile.
func (c *Client) UpdateDonor(ctx context.Context, form *forms.Form) (WriteResult, error) {
	return c.submit(ctx, PathDonorUpdate, form)
}

// SaveNeedy registers a needy profile.
func (c *Client) SaveNeedy(ctx context.Context, form *forms.Form) (WriteResult, error) {
	return c.submit(ctx, PathNeedySave, form)
}

// UpdateNeedy updates a needy profile.
func (c *Client) UpdateNeedy(ctx context.Context, form *forms.Form) (WriteResult, error) {
	return c.submit(ctx, PathNeedyUpdate, form)
}

func (c *Client) submit(ctx context.Context, path string, form *forms.Form) (WriteResult, error) {
	var buf bytes.Buffer
	contentType, err := form.Encode(&buf)
	if err != nil {
		return WriteResult{}, fmt.Errorf("encode %s form: %w", form.Schema().Name, err)
	}

	env, err := c.do(ctx, request{
		endpoint:    path,
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: contentType,
	})
	if err != nil {
		return WriteResult{}, err
	}
	if !env.Status {
		c.logger.Info("backend write rejected",
			zap.String("endpoint", path),
			zap.String("msg", env.Msg))
	}
	return WriteResult{OK: env.Status, Msg: env.Msg}, nil
}

// FrontOCR holds the identity fields read off the front of an Aadhaar card.
type FrontOCR struct {
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
}

// ExtractAadhaarFront runs OCR on the card front. A nil result comes with
// the server's message.
func (c *Client) ExtractAadhaarFront(ctx context.Context, file *forms.File) (*FrontOCR, string, error) {
	env, err := c.upload(ctx, PathAadhaarFront, "aadhaarFront", file)
	if err != nil {
		return nil, "", err
	}
	if !env.Status {
		return nil, env.Msg, nil
	}
	var out FrontOCR
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", PathAadhaarFront, err)
		}
	}
	return &out, env.Msg, nil
}

// ExtractAadhaarBack runs OCR on the card back and returns the address.
// ok is false when the backend could not read it.
func (c *Client) ExtractAadhaarBack(ctx context.Context, file *forms.File) (address string, ok bool, msg string, err error) {
	env, err := c.upload(ctx, PathAadhaarBack, "aadhaarBack", file)
	if err != nil {
		return "", false, "", err
	}
	if !env.Status {
		c.logger.Warn("address extraction failed", zap.String("msg", env.Msg))
		c.logger.Debug("address extraction debug", zap.ByteString("debug", env.Debug))
		return "", false, env.Msg, nil
	}
	return env.Address, true, env.Msg, nil
}

func (c *Client) upload(ctx context.Context, path, field string, file *forms.File) (*envelope, error) {
	var buf bytes.Buffer
	contentType, err := forms.EncodeFile(&buf, field, file)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", field, err)
	}
	return c.do(ctx, request{
		endpoint:    path,
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: contentType,
	})
}
