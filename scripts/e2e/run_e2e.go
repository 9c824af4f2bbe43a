// Package main runs end-to-end scenarios against a running lead intake API.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 ADMIN_JWT_SECRET=... go run scripts/e2e/run_e2e.go [scenario-name]
//
// Admin scenarios are skipped when ADMIN_JWT_SECRET is empty. Every run uses
// fresh email addresses so scenarios can be repeated against the same database.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	apiBase   string
	jwtSecret string
	runID     = uuid.NewString()[:8]
	client    = &http.Client{Timeout: 10 * time.Second}
)

type scenario struct {
	Name  string
	Admin bool
	Fn    func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type submitResponse struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
	ErrorID string `json:"error_id"`
}

func email(tag string) string {
	return fmt.Sprintf("e2e-%s-%s@example.com", tag, runID)
}

func post(path string, body map[string]string) (int, submitResponse, error) {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, apiBase+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://e2e.local/landing")
	resp, err := client.Do(req)
	if err != nil {
		return 0, submitResponse{}, err
	}
	defer resp.Body.Close()
	var out submitResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &out); err != nil {
		return resp.StatusCode, out, fmt.Errorf("decode %s: %w (body=%q)", path, err, string(raw))
	}
	return resp.StatusCode, out, nil
}

func adminGet(path string, dst any) (int, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "e2e",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		return 0, err
	}
	req, _ := http.NewRequest(http.MethodGet, apiBase+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioLifecycle(t *T) {
	addr := email("lifecycle")
	code, out, err := post("/api/leads", map[string]string{"email": strings.ToUpper(addr), "name": "E2E", "whatsapp": "+57 300 123 4567"})
	if err != nil {
		t.fatalf("create: %v", err)
		return
	}
	t.check("create returns 200", code == http.StatusOK)
	t.check("create status inserted", out.Status == "inserted")

	_, out, err = post("/api/leads", map[string]string{"email": addr, "city": "Bogotá"})
	if err != nil {
		t.fatalf("update: %v", err)
		return
	}
	t.check("new field yields updated", out.Status == "updated")

	_, out, err = post("/api/leads", map[string]string{"email": addr, "name": "E2E"})
	if err != nil {
		t.fatalf("resubmit: %v", err)
		return
	}
	t.check("identical data yields unchanged", out.Status == "unchanged")
}

func scenarioValidation(t *T) {
	code, out, err := post("/api/leads", map[string]string{"email": "not-an-email"})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("bad email is 400", code == http.StatusBadRequest)
	t.check("bad email code", out.Code == "invalid_email")

	code, out, err = post("/api/leads", map[string]string{"email": email("phone"), "phone": "123"})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("bad phone is 400", code == http.StatusBadRequest)
	t.check("bad phone code", out.Code == "invalid_phone")
}

func scenarioHoneypot(t *T) {
	code, out, err := post("/api/leads", map[string]string{"email": email("bot"), "website": "http://spam.example"})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("honeypot looks successful", code == http.StatusOK && out.OK)
}

func scenarioWaitlist(t *T) {
	addr := email("waitlist")
	_, out, err := post("/api/waitlist", map[string]string{"email": addr, "name": "Wait"})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("first waitlist join inserted", out.Status == "inserted")
	_, out, err = post("/api/waitlist", map[string]string{"email": addr})
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("second waitlist join exists", out.Status == "exists")
}

func scenarioAdmin(t *T) {
	if _, _, err := post("/api/leads", map[string]string{"email": email("admin")}); err != nil {
		t.fatalf("seed: %v", err)
		return
	}
	var list struct {
		Leads []struct {
			ID     string `json:"id"`
			Email  string `json:"email"`
			Source string `json:"source"`
		} `json:"leads"`
	}
	code, err := adminGet("/admin/leads?limit=100", &list)
	if err != nil {
		t.fatalf("list: %v", err)
		return
	}
	t.check("admin list is 200", code == http.StatusOK)
	found := false
	for _, l := range list.Leads {
		if l.Email == email("admin") {
			found = true
			t.check("source taken from referer", l.Source == "https://e2e.local/landing")
		}
	}
	t.check("seeded lead listed", found)

	var stats struct {
		Total int64 `json:"total"`
	}
	code, err = adminGet("/admin/leads/stats", &stats)
	if err != nil {
		t.fatalf("stats: %v", err)
		return
	}
	t.check("stats is 200", code == http.StatusOK)
	t.check("stats counted submissions", stats.Total > 0)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	jwtSecret = os.Getenv("ADMIN_JWT_SECRET")

	scenarios := []scenario{
		{Name: "lifecycle", Fn: scenarioLifecycle},
		{Name: "validation", Fn: scenarioValidation},
		{Name: "honeypot", Fn: scenarioHoneypot},
		{Name: "waitlist", Fn: scenarioWaitlist},
		{Name: "admin", Admin: true, Fn: scenarioAdmin},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}
		if s.Admin && jwtSecret == "" {
			fmt.Printf("\nSKIP: %s (ADMIN_JWT_SECRET not set)\n", s.Name)
			continue
		}
		fmt.Printf("\nSCENARIO: %s\n", s.Name)
		t := &T{name: s.Name}
		s.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
