package handlers

import (
	"net/http"
	"strings"
	"testing"
)

const voucherJSON = `{
	"code": "tet2026",
	"discountAmount": 200000,
	"minOrderValue": 1000000,
	"usageLimit": 2,
	"startDate": "2026-02-01T00:00:00Z",
	"endDate": "2026-04-01T00:00:00Z"
}`

func TestVoucherCreateAndLookup(t *testing.T) {
	f := newAPIFixture(t)

	rr, env := f.do(t, http.MethodPost, "/vouchers/", strings.NewReader(voucherJSON))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decodeData[voucherPayload](t, env)
	if created.Code != "TET2026" || !created.Active || created.Remaining != 2 {
		t.Fatalf("unexpected voucher %+v", created)
	}

	rr, env = f.do(t, http.MethodPost, "/vouchers/", strings.NewReader(voucherJSON))
	if rr.Code != http.StatusConflict || env.Error != "voucher_code_taken" {
		t.Fatalf("expected voucher_code_taken, got %d %s", rr.Code, env.Error)
	}

	rr, env = f.do(t, http.MethodGet, "/vouchers/code/Tet2026", nil)
	if rr.Code != http.StatusOK || decodeData[voucherPayload](t, env).ID != created.ID {
		t.Fatalf("lookup by code failed: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = f.do(t, http.MethodGet, "/vouchers/code/UNKNOWN", nil)
	if rr.Code != http.StatusNotFound || env.Error != "voucher_not_found" {
		t.Fatalf("expected voucher_not_found, got %d %s", rr.Code, env.Error)
	}

	f.createPercentVoucher(t, "ALPHA", 5, 10)
	rr, env = f.do(t, http.MethodGet, "/vouchers/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	listed := decodeData[[]voucherPayload](t, env)
	if len(listed) != 2 || listed[0].Code != "ALPHA" || listed[1].Code != "TET2026" {
		t.Fatalf("expected vouchers ordered by code, got %+v", listed)
	}
}

func TestVoucherCreateValidation(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "invalid_request"},
		{"unknown field", `{"code":"X","bogus":1}`, "invalid_request"},
		{"no discount", `{"code":"X","usageLimit":1,"startDate":"2026-02-01T00:00:00Z","endDate":"2026-04-01T00:00:00Z"}`, "invalid_voucher"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, env := f.do(t, http.MethodPost, "/vouchers/", strings.NewReader(tc.body))
			if rr.Code != http.StatusBadRequest || env.Error != tc.code {
				t.Fatalf("expected 400 %s, got %d %s", tc.code, rr.Code, env.Error)
			}
		})
	}
}

func TestVoucherApply(t *testing.T) {
	f := newAPIFixture(t)
	f.createPercentVoucher(t, "HALF", 50, 1)

	rr, env := f.do(t, http.MethodGet, "/vouchers/apply?code=half&orderTotal=300000", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply: %d %s", rr.Code, rr.Body.String())
	}
	applied := decodeData[voucherApplicationPayload](t, env)
	if applied.Discount != 150_000 || applied.FinalTotal != 150_000 || applied.Remaining != 0 {
		t.Fatalf("unexpected application %+v", applied)
	}

	rr, env = f.do(t, http.MethodGet, "/vouchers/apply?code=HALF&orderTotal=300000", nil)
	if rr.Code != http.StatusBadRequest || env.Error != "voucher_rejected" {
		t.Fatalf("expected voucher_rejected, got %d %s", rr.Code, env.Error)
	}
	if rejection := decodeData[voucherRejection](t, env); rejection.Reason != "exhausted" {
		t.Fatalf("expected exhausted, got %+v", rejection)
	}

	rr, _ = f.do(t, http.MethodGet, "/vouchers/apply?code=HALF&orderTotal=lots", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad total, got %d", rr.Code)
	}
}

func TestVoucherUpdateAndDelete(t *testing.T) {
	f := newAPIFixture(t)
	voucher := f.createPercentVoucher(t, "SPRING", 10, 3)
	if _, err := f.vouchers.Apply(t.Context(), "SPRING", 1_000_000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := f.vouchers.Apply(t.Context(), "SPRING", 1_000_000); err != nil {
		t.Fatalf("apply: %v", err)
	}

	below := strings.Replace(voucherJSON, `"usageLimit": 2`, `"usageLimit": 1`, 1)
	rr, env := f.do(t, http.MethodPut, "/vouchers/"+voucher.ID, strings.NewReader(below))
	if rr.Code != http.StatusBadRequest || env.Error != "invalid_voucher" {
		t.Fatalf("expected invalid_voucher below usedCount, got %d %s", rr.Code, env.Error)
	}

	paused := strings.Replace(voucherJSON, `"usageLimit": 2`, `"usageLimit": 5, "active": false`, 1)
	rr, env = f.do(t, http.MethodPut, "/vouchers/"+voucher.ID, strings.NewReader(paused))
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	updated := decodeData[voucherPayload](t, env)
	if updated.Code != "TET2026" || updated.Active || updated.UsedCount != 2 || updated.Remaining != 3 {
		t.Fatalf("unexpected update %+v", updated)
	}

	rr, _ = f.do(t, http.MethodDelete, "/vouchers/"+voucher.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr, env = f.do(t, http.MethodDelete, "/vouchers/"+voucher.ID, nil)
	if rr.Code != http.StatusNotFound || env.Error != "voucher_not_found" {
		t.Fatalf("expected voucher_not_found, got %d %s", rr.Code, env.Error)
	}
}
