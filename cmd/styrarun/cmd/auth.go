package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication diagnostics",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and token claims",
	Long: `Show the effective configuration including:
  - Environment URL and whether a token is configured
  - Token claims (decoded without verification, for diagnostics only)
  - Service connectivity (reachable or unreachable)`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

// AuthStatus represents the diagnostics for JSON/YAML output.
type AuthStatus struct {
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
	TokenSet     bool   `json:"token_set" yaml:"token_set"`
	TokenSubject string `json:"token_subject,omitempty" yaml:"token_subject,omitempty"`
	TokenIssuer  string `json:"token_issuer,omitempty" yaml:"token_issuer,omitempty"`
	TokenExpiry  string `json:"token_expiry,omitempty" yaml:"token_expiry,omitempty"`
	TokenOpaque  bool   `json:"token_opaque,omitempty" yaml:"token_opaque,omitempty"`
	ServerOK     bool   `json:"server_reachable" yaml:"server_reachable"`
	ServerError  string `json:"server_error,omitempty" yaml:"server_error,omitempty"`
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status := AuthStatus{
		URL:      cfg.URL,
		TokenSet: cfg.Token != "",
	}
	if status.TokenSet {
		fillTokenClaims(&status, cfg.Token)
	}
	if status.URL != "" {
		status.ServerOK, status.ServerError = checkConnectivity(cfg.URL, cfg.Token)
	}

	if outputFormat != "table" {
		return formatOutput(os.Stdout, status)
	}

	fmt.Println("Styra Run Status")
	fmt.Println()
	if status.URL != "" {
		fmt.Printf("  Environment:  %s\n", status.URL)
	} else {
		fmt.Println("  Environment:  (not configured)")
	}
	switch {
	case !status.TokenSet:
		fmt.Println("  Token:        (not configured)")
	case status.TokenOpaque:
		fmt.Println("  Token:        configured (opaque)")
	default:
		fmt.Printf("  Token:        subject=%s issuer=%s expires=%s\n",
			status.TokenSubject, status.TokenIssuer, status.TokenExpiry)
	}
	if status.URL != "" {
		if status.ServerOK {
			fmt.Println("  Connectivity: reachable")
		} else {
			fmt.Printf("  Connectivity: unreachable (%s)\n", status.ServerError)
		}
	}
	return nil
}

// fillTokenClaims decodes the token as a JWT without verifying it. Tokens
// that are not JWTs are reported as opaque, not as errors.
func fillTokenClaims(status *AuthStatus, token string) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{
		jose.RS256, jose.RS384, jose.RS512,
		jose.ES256, jose.ES384, jose.ES512,
		jose.HS256, jose.HS384, jose.HS512,
		jose.EdDSA,
	})
	if err != nil {
		status.TokenOpaque = true
		return
	}
	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		status.TokenOpaque = true
		return
	}
	status.TokenSubject = claims.Subject
	status.TokenIssuer = claims.Issuer
	if claims.Expiry != nil {
		status.TokenExpiry = claims.Expiry.Time().UTC().Format(time.RFC3339)
	}
}

// checkConnectivity probes the discovery endpoint with the configured token.
func checkConnectivity(baseURL, token string) (bool, string) {
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/gateways", nil)
	if err != nil {
		return false, err.Error()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return false, "connection timed out"
		}
		return false, "connection failed"
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, fmt.Sprintf("token rejected (status %d)", resp.StatusCode)
	}
	return true, ""
}
