// Command authctl is an operator tool for the auth gateway: it issues and
// inspects purpose tokens, probes the gRPC health endpoint and manages the
// database schema.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/authgate/internal/config"
	"github.com/and161185/authgate/internal/tokens"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// exit codes
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// env holds the process environment merged with .env for flag defaults.
type env map[string]string

func (e env) get(key, def string) string {
	if v := e[key]; v != "" {
		return v
	}
	return def
}

// ---- grpc dial ----

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // operator opt-in
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dialHealth(addr, caPath string, plaintext, skipVerify bool) (*grpc.ClientConn, healthpb.HealthClient, error) {
	creds := insecure.NewCredentials()
	if !plaintext {
		c, err := loadTLS(caPath, skipVerify)
		if err != nil {
			return nil, nil, err
		}
		creds = c
	}
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, err
	}
	return cc, healthpb.NewHealthClient(cc), nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parsePurpose(s string) (tokens.Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verify", "verification", string(tokens.PurposeEmailVerification):
		return tokens.PurposeEmailVerification, nil
	case "reset", string(tokens.PurposePasswordReset):
		return tokens.PurposePasswordReset, nil
	}
	return "", fmt.Errorf("unknown purpose %q (want verify or reset)", s)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `authctl
Usage:
  authctl <cmd> [flags]

Commands:
  version
  issue          -purpose verify|reset -email <addr> [-username <name>]
  verify         -purpose verify|reset -token <jwt>
  decode         -token <jwt>                 (verification token, expiry ignored)
  hash-token     -token <jwt>
  password-check -p <password>
  health         -addr HOST:PORT [-plaintext | -cacert file | -insecure] [-service name]
  migrate        [-dsn DSN]
  db-version     [-dsn DSN]
  schema         [-dsn DSN] [-schema public] [-out file]

JWT_SECRET, JWT_ISSUER and DATABASE_URL are read from the environment or .env.
`)
}

// ---- main ----

// run dispatches one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, e env, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "authctl %s (%s)\n", version, buildDate)
	case "issue":
		err = cmdIssue(rest, e, stdout)
	case "verify":
		err = cmdVerify(rest, e, stdout)
	case "decode":
		err = cmdDecode(rest, e, stdout)
	case "hash-token":
		err = cmdHashToken(rest, stdout)
	case "password-check":
		err = cmdPasswordCheck(rest, stdout)
	case "health":
		err = cmdHealth(ctx, rest, stdout)
	case "migrate":
		err = cmdMigrate(ctx, rest, e, stdout)
	case "db-version":
		err = cmdDBVersion(ctx, rest, e, stdout)
	case "schema":
		err = cmdSchema(ctx, rest, e, stdout)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return exitUsage
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		fmt.Fprintln(stderr, "error:", err)
		return exitFail
	}
	return exitOK
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	code := run(ctx, os.Args[1:], env(config.Environ(".env")), os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
