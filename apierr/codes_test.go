// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package apierr

import "testing"

func TestOkEnvelope(t *testing.T) {
	resp := Ok(map[string]string{"id": "123"})
	if resp.Code != SUCCESS {
		t.Fatalf("expected code %d, got %d", SUCCESS, resp.Code)
	}
	if resp.Msg != "success" {
		t.Fatalf("expected msg %q, got %q", "success", resp.Msg)
	}
	if resp.Data == nil {
		t.Fatal("expected Ok to carry the given data through")
	}
}

func TestFailEnvelope(t *testing.T) {
	resp := Fail(JobNotFound, "job not found")
	if resp.Code != JobNotFound {
		t.Fatalf("expected code %d, got %d", JobNotFound, resp.Code)
	}
	if resp.Msg != "job not found" {
		t.Fatalf("expected msg %q, got %q", "job not found", resp.Msg)
	}
	if resp.Data != nil {
		t.Fatalf("expected Fail to carry no data, got %v", resp.Data)
	}
}

func TestCodesAreNamespacedAndDistinct(t *testing.T) {
	codes := []int{
		SUCCESS, ERROR, InvalidParams,
		Unauthorized, AuthorizationExpired, AuthorizationFail,
		JobNotFound, JobNameReserved, JobNameConflict, JobValidation, JobMissingHandler,
		ControlNotFound, ControlConflict,
	}
	seen := make(map[int]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate error code %d", c)
		}
		seen[c] = true
	}
}
