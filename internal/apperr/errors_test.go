package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestTaxonomyStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		typ    string
		status int
	}{
		{Validation("bad input"), TypeValidation, http.StatusBadRequest},
		{Authentication("no token"), TypeAuthentication, http.StatusUnauthorized},
		{Authorization("forbidden"), TypeAuthorization, http.StatusForbidden},
		{NotFound("policy", "p1"), TypeNotFound, http.StatusNotFound},
		{Conflict("duplicate email"), TypeConflict, http.StatusConflict},
		{CostLimitExceeded("over budget", 100, 150), TypeCostLimitExceeded, http.StatusPaymentRequired},
		{RateLimited(60, 60), TypeRateLimitExceeded, http.StatusTooManyRequests},
		{External("billing", "timeout"), TypeExternalService, http.StatusBadGateway},
		{CloudProvider("aws", "throttled"), TypeCloudProvider, http.StatusBadGateway},
		{Infrastructure("provisioning failed"), TypeInfrastructure, http.StatusInternalServerError},
		{Terraform("apply failed"), TypeTerraform, http.StatusBadGateway},
		{Configuration("missing secret"), TypeConfiguration, http.StatusInternalServerError},
		{Unavailable("database not configured"), TypeUnavailable, http.StatusServiceUnavailable},
		{Database(errors.New("boom")), TypeDatabase, http.StatusInternalServerError},
		{Internal(errors.New("boom")), TypeInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if c.err.Type != c.typ {
			t.Fatalf("type = %q, want %q", c.err.Type, c.typ)
		}
		if c.err.Status != c.status {
			t.Fatalf("%s: status = %d, want %d", c.typ, c.err.Status, c.status)
		}
	}
}

func TestNotFoundDetails(t *testing.T) {
	err := NotFound("resource", "r42")
	if err.Details["resource"] != "resource" || err.Details["id"] != "r42" {
		t.Fatalf("details = %v", err.Details)
	}
}

func TestRateLimitedDetails(t *testing.T) {
	err := RateLimited(60, 60)
	if err.Details["retry_after"] != 60 {
		t.Fatalf("retry_after = %v", err.Details["retry_after"])
	}
	if err.Details["window"] != "60s" {
		t.Fatalf("window = %v", err.Details["window"])
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Database(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be visible to errors.Is")
	}
	var ae *Error
	if !errors.As(error(err), &ae) {
		t.Fatalf("errors.As failed")
	}
}
