// Package payment builds the redirect to the hosted checkout and interprets
// the outcome the gateway reports on return. Charging happens off-site.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

var ErrUnknownOutcome = errors.New("unknown payment outcome")

// ParseOutcome maps the gateway's return value. Anything that is not an
// explicit success releases the booking.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "exito", "approved":
		return OutcomeSuccess, nil
	case "failure", "error", "pending", "rejected", "abandoned":
		return OutcomeFailure, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, raw)
	}
}

// Checkout describes the booking being paid for.
type Checkout struct {
	Reference   string
	CourtID     int64
	Date        string
	StartSlot   string
	SlotCount   int
	ClientName  string
	ClientPhone string
}

type Provider interface {
	CheckoutURL(ctx context.Context, c Checkout) (string, error)
}

// HostedCheckout redirects to a fixed checkout page, passing the booking
// reference and the URL the gateway should send the customer back to.
type HostedCheckout struct {
	Page      string
	ReturnURL string
}

func NewHostedCheckout(checkoutURL, returnURL string) (*HostedCheckout, error) {
	if _, err := url.ParseRequestURI(checkoutURL); err != nil {
		return nil, fmt.Errorf("invalid checkout url: %w", err)
	}
	if _, err := url.ParseRequestURI(returnURL); err != nil {
		return nil, fmt.Errorf("invalid return url: %w", err)
	}
	return &HostedCheckout{Page: checkoutURL, ReturnURL: returnURL}, nil
}

func (h *HostedCheckout) CheckoutURL(_ context.Context, c Checkout) (string, error) {
	if strings.TrimSpace(c.Reference) == "" {
		return "", errors.New("checkout reference is required")
	}
	target, err := url.Parse(h.Page)
	if err != nil {
		return "", fmt.Errorf("parse checkout url: %w", err)
	}
	back, err := url.Parse(h.ReturnURL)
	if err != nil {
		return "", fmt.Errorf("parse return url: %w", err)
	}
	backQuery := back.Query()
	backQuery.Set("reference", c.Reference)
	back.RawQuery = backQuery.Encode()

	q := target.Query()
	q.Set("reference", c.Reference)
	q.Set("court", strconv.FormatInt(c.CourtID, 10))
	q.Set("date", c.Date)
	q.Set("start", c.StartSlot)
	q.Set("slots", strconv.Itoa(c.SlotCount))
	q.Set("return_url", back.String())
	target.RawQuery = q.Encode()
	return target.String(), nil
}
