package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Smoke-tests the fee ledger through the running API: opens an account,
// replays the same payment twice under one idempotency key and checks the
// balance moved exactly once.
func main() {
	base := os.Getenv("COLLEGIA_API_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("COLLEGIA_SMOKE_EMAIL")
	password := os.Getenv("COLLEGIA_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set COLLEGIA_SMOKE_EMAIL and COLLEGIA_SMOKE_PASSWORD (admin credentials)")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		SubjectID   string `json:"subject_id"`
	}
	if err := post(client, base+"/v1/auth/token", "", "", map[string]any{
		"email":    email,
		"password": password,
	}, &tokenResp); err != nil {
		log.Fatalf("login: %v", err)
	}

	studentID := fmt.Sprintf("smoke-%d", rand.Int63())
	term := "2026-autumn"

	var acc struct {
		Charged int64 `json:"charged"`
		Paid    int64 `json:"paid"`
	}
	if err := post(client, base+"/v1/fees/accounts", tokenResp.AccessToken, "", map[string]any{
		"student_id": studentID,
		"term":       term,
		"currency":   "INR",
		"amount":     50_000,
	}, &acc); err != nil {
		log.Fatalf("open account: %v", err)
	}

	idemKey := fmt.Sprintf("smoke-pay-%d", rand.Int63())
	payBody := map[string]any{
		"student_id": studentID,
		"term":       term,
		"currency":   "INR",
		"amount":     int64(20_000),
		"reference":  "smoke",
	}
	var first, second struct {
		ID       string `json:"id"`
		Sequence uint64 `json:"sequence"`
	}
	if err := post(client, base+"/v1/fees/payments", tokenResp.AccessToken, idemKey, payBody, &first); err != nil {
		log.Fatalf("payment: %v", err)
	}
	if err := post(client, base+"/v1/fees/payments", tokenResp.AccessToken, idemKey, payBody, &second); err != nil {
		log.Fatalf("payment replay: %v", err)
	}
	if first.ID != second.ID || first.Sequence != second.Sequence {
		log.Fatalf("idempotency broken: %s/%d vs %s/%d", first.ID, first.Sequence, second.ID, second.Sequence)
	}

	var after struct {
		Charged int64 `json:"charged"`
		Paid    int64 `json:"paid"`
	}
	url := fmt.Sprintf("%s/v1/fees/accounts?student_id=%s&term=%s", base, studentID, term)
	if err := get(client, url, tokenResp.AccessToken, &after); err != nil {
		log.Fatalf("read account: %v", err)
	}
	if after.Paid != 20_000 {
		log.Fatalf("balance moved %d, want 20000", after.Paid)
	}

	fmt.Printf("fees smoke test passed: student=%s paid=%d outstanding=%d\n",
		studentID, after.Paid, after.Charged-after.Paid)
}

func post(client *http.Client, url, token, idemKey string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	return do(client, req, out)
}

func get(client *http.Client, url, token string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
