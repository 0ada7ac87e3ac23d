// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/server/httperr"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusRequestTimeout},
		{fmt.Errorf("outer: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errs.NewWarn("bad budget"), http.StatusBadRequest},
		{errs.NewFatal("pool broken"), http.StatusInternalServerError},
		{errs.Wrap(errs.NewWarn("bad budget"), "play"), http.StatusBadRequest},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for i, c := range cases {
		if got := httperr.StatusCode(c.err); got != c.want {
			t.Fatalf("case %d: StatusCode(%v) = %d, want %d", i, c.err, got, c.want)
		}
	}
}

func TestErrsWritesStatus(t *testing.T) {
	w := httptest.NewRecorder()
	httperr.Errs(w, errs.NewWarn("unknown scenario"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("body must carry the error message")
	}

	w = httptest.NewRecorder()
	httperr.Errs(w, nil)
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("nil error must write nothing")
	}
}
