//go:build !integration

package provider_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	"shortlet-payments/internal/infra/adapters/provider"
)

func paystackStub(t *testing.T, wantRef string, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("Authorization = %q", got)
		}
		if want := "/transaction/verify/" + wantRef; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		handler(w, r)
	}))
}

func TestPaystackVerify_Success(t *testing.T) {
	srv := paystackStub(t, "ref_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{
			"id":4099260516,"status":"success","amount":500000,"currency":"NGN",
			"reference":"ref_1","gateway_response":"Successful"}}`)
	})
	defer srv.Close()

	v := provider.NewPaystackVerifier("sk_test", srv.URL)
	res, err := v.Verify(context.Background(), "ref_1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.OK || res.Status != "success" {
		t.Fatalf("result = %+v", res)
	}
	if res.PaidAmountMinor != 500000 || res.Currency != "NGN" {
		t.Fatalf("amount/currency = %d %s", res.PaidAmountMinor, res.Currency)
	}
	if res.ExternalTxID != "4099260516" {
		t.Fatalf("external tx id = %q", res.ExternalTxID)
	}
	if len(res.RawPayload) == 0 {
		t.Fatal("raw payload not captured")
	}
}

func TestPaystackVerify_NotPaidIsNotAnError(t *testing.T) {
	for _, status := range []string{"abandoned", "failed", "reversed", "pending", "ongoing"} {
		t.Run(status, func(t *testing.T) {
			srv := paystackStub(t, "ref_1", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status":true,"message":"Verification successful","data":{
					"id":1,"status":%q,"amount":500000,"currency":"NGN","reference":"ref_1"}}`, status)
			})
			defer srv.Close()

			v := provider.NewPaystackVerifier("sk_test", srv.URL)
			res, err := v.Verify(context.Background(), "ref_1")
			if err != nil {
				t.Fatalf("a reachable not-paid verdict must not error: %v", err)
			}
			if res.OK {
				t.Fatalf("OK = true for status %q", status)
			}
			if res.Status != status {
				t.Fatalf("status = %q, want %q", res.Status, status)
			}
		})
	}
}

func TestPaystackVerify_AuthErrorIsAnError(t *testing.T) {
	srv := paystackStub(t, "ref_1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	})
	defer srv.Close()

	v := provider.NewPaystackVerifier("sk_test", srv.URL)
	if _, err := v.Verify(context.Background(), "ref_1"); err == nil {
		t.Fatal("expected an error on 401")
	}
}

func TestPaystackVerify_UnknownReferenceIsAnError(t *testing.T) {
	srv := paystackStub(t, "ref_missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":false,"message":"Transaction reference not found"}`)
	})
	defer srv.Close()

	v := provider.NewPaystackVerifier("sk_test", srv.URL)
	_, err := v.Verify(context.Background(), "ref_missing")
	if err == nil {
		t.Fatal("expected an error for an unknown reference")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v", err)
	}
}

func TestNoopVerifier(t *testing.T) {
	v := provider.NewNoopVerifier(model.ProviderPaystack)
	if v.Name() != model.ProviderPaystack {
		t.Fatalf("name = %s", v.Name())
	}

	res, err := v.Verify(context.Background(), "unseen")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.OK || res.Status != "pending" {
		t.Fatalf("default result = %+v", res)
	}

	v.SetResult("ref_1", adapter.VerificationResult{OK: true, Status: "success", PaidAmountMinor: 100, Currency: "usd"})
	res, err = v.Verify(context.Background(), "ref_1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.OK || res.PaidAmountMinor != 100 {
		t.Fatalf("canned result = %+v", res)
	}
}
