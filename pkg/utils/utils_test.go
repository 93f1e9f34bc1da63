package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":            "photo.png",
		"my photo (1).JPG":     "my_photo__1_.JPG",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\cat.webp`: "cat.webp",
		".hidden.png":          "_hidden.png",
		"...png":               "_png",
		"":                     "file",
		"..":                   "file",
		"über-straße.gif":      "_ber-stra_e.gif",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPaginationFromCtx(t *testing.T) {
	e := echo.New()
	cases := []struct {
		query      string
		page, size int
		offset     int
		status     string
		wantErr    bool
	}{
		{"", 1, 10, 0, "", false},
		{"?page=3&size=20", 3, 20, 40, "", false},
		{"?status=failed", 1, 10, 0, "failed", false},
		{"?size=0", 0, 0, 0, "", true},
		{"?size=101", 0, 0, 0, "", true},
		{"?page=0", 0, 0, 0, "", true},
		{"?page=abc", 0, 0, 0, "", true},
	}
	for _, tc := range cases {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), httptest.NewRecorder())
		p, err := GetPaginationFromCtx(c)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", tc.query)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.query, err)
			continue
		}
		if p.Page != tc.page || p.Size != tc.size || p.GetOffset() != tc.offset || p.Status != tc.status {
			t.Errorf("%q: got %+v offset %d", tc.query, p, p.GetOffset())
		}
	}
}

func TestPageMath(t *testing.T) {
	if got := GetTotalPages(21, 10); got != 3 {
		t.Errorf("GetTotalPages(21, 10) = %d", got)
	}
	if got := GetTotalPages(5, 0); got != 0 {
		t.Errorf("GetTotalPages(5, 0) = %d", got)
	}
	if !GetHasMore(1, 21, 10) || GetHasMore(3, 21, 10) {
		t.Error("GetHasMore boundaries wrong")
	}
}

func TestCheckCPUUsageDisabled(t *testing.T) {
	if ok, _ := CheckCPUUsage(0); !ok {
		t.Fatal("a non-positive limit should disable the check")
	}
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Name string `validate:"required"`
		Size int    `validate:"gte=0"`
	}
	if err := ValidateStruct(context.Background(), input{Name: "a"}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if err := ValidateStruct(context.Background(), input{Size: -1}); err == nil {
		t.Fatal("invalid input accepted")
	}
}
