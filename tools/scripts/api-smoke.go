// Package main provides a CI-friendly smoke test for the koach account API.
//
// It validates:
//   - signup returns a token in body and Authorization header
//   - protected routes reject missing, malformed and foreign-scheme headers
//   - login with wrong and right passwords
//   - list, get, v1 update, v2 self-only rules
//   - delete invalidates the account's token
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type smokeClient struct {
	base    string
	http    *http.Client
	verbose bool
}

type session struct {
	User struct {
		ID       string  `json:"id"`
		Name     *string `json:"name"`
		Username string  `json:"username"`
	} `json:"user"`
	Token string `json:"token"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Timeout: *timeout},
		verbose: *verbose,
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	userA := "smoke_a_" + suffix
	userB := "smoke_b_" + suffix

	a := c.mustSignup(userA, "smoke-password-a")
	b := c.mustSignup(userB, "smoke-password-b")

	for _, hdr := range []string{"", "1", "Unknown " + a.Token, "Bearer 1"} {
		c.expectStatus(http.MethodGet, "/v1/users", hdr, nil, http.StatusUnauthorized)
	}

	c.expectStatus(http.MethodPost, "/v1/auth", "", map[string]string{"username": userA, "password": "nope"}, http.StatusUnauthorized)
	login := c.mustLogin(userA, "smoke-password-a")
	if login.User.ID != a.User.ID {
		fatalf("login returned %q, signup returned %q", login.User.ID, a.User.ID)
	}

	c.expectStatus(http.MethodGet, "/v1/users", bearer(login.Token), nil, http.StatusOK)
	c.expectStatus(http.MethodGet, "/v1/users/"+b.User.ID, bearer(a.Token), nil, http.StatusOK)

	name := map[string]any{"user": map[string]any{"name": "smoke"}}
	c.expectStatus(http.MethodPut, "/v1/users/"+b.User.ID, bearer(a.Token), name, http.StatusOK)
	c.expectStatus(http.MethodPut, "/v2/users/"+b.User.ID, bearer(a.Token), name, http.StatusForbidden)
	c.expectStatus(http.MethodPut, "/v2/users/"+a.User.ID, bearer(a.Token),
		map[string]any{"user": map[string]any{"password": "x"}}, http.StatusUnprocessableEntity)

	c.expectStatus(http.MethodDelete, "/v2/users/"+a.User.ID, bearer(a.Token), nil, http.StatusOK)
	c.expectStatus(http.MethodGet, "/v1/users", bearer(a.Token), nil, http.StatusUnauthorized)
	c.expectStatus(http.MethodDelete, "/v2/users/"+b.User.ID, bearer(b.Token), nil, http.StatusOK)

	fmt.Println("OK: account API smoke passed")
}

func (c *smokeClient) mustSignup(username, pass string) session {
	body := map[string]any{"user": map[string]any{"username": username, "password": pass}}
	res, raw := c.do(http.MethodPost, "/v1/users", "", body)
	if res.StatusCode != http.StatusCreated {
		fatalf("signup %s: status=%d body=%s", username, res.StatusCode, raw)
	}
	s := decodeSession(raw, "signup")
	if got := res.Header.Get("Authorization"); got != bearer(s.Token) {
		fatalf("signup %s: Authorization header %q does not carry body token", username, got)
	}
	if bytes.Contains(raw, []byte(pass)) || bytes.Contains(raw, []byte(`"password"`)) {
		fatalf("signup %s: response leaks credential fields", username)
	}
	return s
}

func (c *smokeClient) mustLogin(username, pass string) session {
	res, raw := c.do(http.MethodPost, "/v1/auth", "", map[string]string{"username": username, "password": pass})
	if res.StatusCode != http.StatusOK {
		fatalf("login %s: status=%d body=%s", username, res.StatusCode, raw)
	}
	return decodeSession(raw, "login")
}

func (c *smokeClient) expectStatus(method, path, auth string, body any, want int) {
	res, raw := c.do(method, path, auth, body)
	if res.StatusCode != want {
		fatalf("%s %s (auth=%q): status=%d want=%d body=%s", method, path, redact(auth), res.StatusCode, want, raw)
	}
}

func (c *smokeClient) do(method, path, auth string, body any) (*http.Response, []byte) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		fatalf("read %s %s: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d\n", method, path, res.StatusCode)
	}
	return res, raw
}

func decodeSession(raw []byte, step string) session {
	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		fatalf("%s: decode: %v", step, err)
	}
	if s.User.ID == "" || s.Token == "" {
		fatalf("%s: missing user id or token", step)
	}
	return s
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func bearer(tok string) string { return "Bearer " + tok }

func redact(auth string) string {
	if scheme, _, ok := strings.Cut(auth, " "); ok {
		return scheme + " ..."
	}
	return auth
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
