package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
)

const maxBodyBytes = 64 << 10

// malformedRequestError marks a body or query that could not be parsed at all.
type malformedRequestError struct {
	err error
}

func (e *malformedRequestError) Error() string { return e.err.Error() }
func (e *malformedRequestError) Unwrap() error { return e.err }

func malformed(format string, args ...any) error {
	return &malformedRequestError{err: fmt.Errorf(format, args...)}
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return malformed("request body is empty")
		}
		return malformed("invalid JSON body: %v", err)
	}
	if dec.More() {
		return malformed("request body must hold a single JSON object")
	}
	return nil
}

// amountField accepts an amount as a JSON number or string.
type amountField struct {
	raw string
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		a.raw = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.raw = s
		return nil
	}
	a.raw = string(b)
	return nil
}

func (a amountField) decimal() (decimal.Decimal, error) {
	return core.ParseAmount(a.raw)
}

type transactionRequest struct {
	Type        string      `json:"type"`
	Amount      amountField `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Recurrence  string      `json:"recurrence"`
}

func (req transactionRequest) toNew() (core.NewTransaction, error) {
	amount, err := req.Amount.decimal()
	if err != nil {
		return core.NewTransaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.NewTransaction{}, err
	}
	return core.NewTransaction{
		Type:        core.TxType(strings.ToLower(sanitizeInput(req.Type))),
		Amount:      amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Date:        date,
		Recurrence:  core.Recurrence(strings.ToLower(sanitizeInput(req.Recurrence))),
	}, nil
}

// patchRequest holds an edit; absent fields are left unchanged.
type patchRequest struct {
	Type        *string      `json:"type"`
	Amount      *amountField `json:"amount"`
	Category    *string      `json:"category"`
	Description *string      `json:"description"`
	Date        *string      `json:"date"`
	Recurrence  *string      `json:"recurrence"`
}

func (req patchRequest) toPatch() (core.Patch, error) {
	var p core.Patch
	if req.Type != nil {
		t := core.TxType(strings.ToLower(sanitizeInput(*req.Type)))
		p.Type = &t
	}
	if req.Amount != nil {
		amount, err := req.Amount.decimal()
		if err != nil {
			return core.Patch{}, err
		}
		p.Amount = &amount
	}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		p.Category = &c
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		p.Description = &d
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return core.Patch{}, err
		}
		p.Date = &date
	}
	if req.Recurrence != nil {
		rec := core.Recurrence(strings.ToLower(sanitizeInput(*req.Recurrence)))
		p.Recurrence = &rec
	}
	return p, nil
}

type budgetRequest struct {
	Category string      `json:"category"`
	Period   string      `json:"period"`
	Amount   amountField `json:"amount"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}
