package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/authgate/internal/migrate"
	"github.com/and161185/authgate/internal/repository/postgres"
	"github.com/and161185/authgate/internal/service"
	"github.com/and161185/authgate/internal/tokens"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func codecFlags(fs *flag.FlagSet, e env) (secret, issuer *string) {
	secret = fs.String("secret", e.get("JWT_SECRET", ""), "HS256 secret")
	issuer = fs.String("issuer", e.get("JWT_ISSUER", tokens.DefaultIssuer), "iss claim")
	return secret, issuer
}

func newCodec(secret, issuer string) (*tokens.Codec, error) {
	return tokens.NewCodec([]byte(secret), tokens.WithIssuer(issuer))
}

type tokenInfo struct {
	Purpose   tokens.Purpose `json:"purpose"`
	Email     string         `json:"email"`
	Username  string         `json:"username,omitempty"`
	Token     string         `json:"token,omitempty"`
	Hash      string         `json:"hash,omitempty"`
	ExpiresIn string         `json:"expiresIn,omitempty"`
	Expired   *bool          `json:"expired,omitempty"`
}

func cmdIssue(args []string, e env, out io.Writer) error {
	fs := newFlagSet("issue", out)
	secret, issuer := codecFlags(fs, e)
	purpose := fs.String("purpose", "verify", "verify or reset")
	email := fs.String("email", "", "recipient address")
	username := fs.String("username", "", "account username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	p, err := parsePurpose(*purpose)
	if err != nil {
		return err
	}
	c, err := newCodec(*secret, *issuer)
	if err != nil {
		return err
	}
	tok, err := c.Issue(p, *email, *username)
	if err != nil {
		return err
	}
	printJSON(out, tokenInfo{
		Purpose:   p,
		Email:     *email,
		Username:  *username,
		Token:     tok,
		Hash:      tokens.HashToken(tok),
		ExpiresIn: tokens.TTL(p).String(),
	})
	return nil
}

func cmdVerify(args []string, e env, out io.Writer) error {
	fs := newFlagSet("verify", out)
	secret, issuer := codecFlags(fs, e)
	purpose := fs.String("purpose", "verify", "verify or reset")
	token := fs.String("token", "", "token to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := parsePurpose(*purpose)
	if err != nil {
		return err
	}
	c, err := newCodec(*secret, *issuer)
	if err != nil {
		return err
	}
	sub, err := c.Verify(p, *token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	printJSON(out, tokenInfo{Purpose: p, Email: sub.Email, Username: sub.Username})
	return nil
}

func cmdDecode(args []string, e env, out io.Writer) error {
	fs := newFlagSet("decode", out)
	secret, issuer := codecFlags(fs, e)
	token := fs.String("token", "", "verification token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := newCodec(*secret, *issuer)
	if err != nil {
		return err
	}
	sub, expired, err := c.DecodeUnverified(*token)
	if err != nil {
		return fmt.Errorf("undecodable token: %w", err)
	}
	printJSON(out, tokenInfo{
		Purpose:  tokens.PurposeEmailVerification,
		Email:    sub.Email,
		Username: sub.Username,
		Expired:  &expired,
	})
	return nil
}

func cmdHashToken(args []string, out io.Writer) error {
	fs := newFlagSet("hash-token", out)
	token := fs.String("token", "", "token to hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("-token is required")
	}
	fmt.Fprintln(out, tokens.HashToken(*token))
	return nil
}

func cmdPasswordCheck(args []string, out io.Writer) error {
	fs := newFlagSet("password-check", out)
	pw := fs.String("p", "", "candidate password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := service.CheckPassword(*pw)
	printJSON(out, struct {
		service.PasswordCheck
		Score  int  `json:"score"`
		Strong bool `json:"strong"`
	}{c, c.Score(), c.Strong()})
	return nil
}

func cmdHealth(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("health", out)
	addr := fs.String("addr", "localhost:9090", "gRPC health address")
	caPath := fs.String("cacert", "", "CA cert (PEM)")
	skipVerify := fs.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := fs.Bool("plaintext", false, "connect without TLS")
	svc := fs.String("service", "", "service name (empty = overall)")
	timeout := fs.Duration("timeout", 5*time.Second, "call timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cc, client, err := dialHealth(*addr, *caPath, *plaintext, *skipVerify)
	if err != nil {
		return err
	}
	defer cc.Close()

	cctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: *svc})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.GetStatus().String())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errors.New("not serving")
	}
	return nil
}

func dsnFlag(fs *flag.FlagSet, e env) *string {
	return fs.String("dsn", e.get("DATABASE_URL", ""), "PostgreSQL DSN")
}

func requireDSN(dsn string) error {
	if dsn == "" {
		return errors.New("-dsn or DATABASE_URL is required")
	}
	return nil
}

func cmdMigrate(ctx context.Context, args []string, e env, out io.Writer) error {
	fs := newFlagSet("migrate", out)
	dsn := dsnFlag(fs, e)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireDSN(*dsn); err != nil {
		return err
	}
	if err := migrate.Up(ctx, *dsn); err != nil {
		return err
	}
	v, err := migrate.Version(ctx, *dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "migrated to version %d\n", v)
	return nil
}

func cmdDBVersion(ctx context.Context, args []string, e env, out io.Writer) error {
	fs := newFlagSet("db-version", out)
	dsn := dsnFlag(fs, e)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireDSN(*dsn); err != nil {
		return err
	}
	v, err := migrate.Version(ctx, *dsn)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, v)
	return nil
}

func cmdSchema(ctx context.Context, args []string, e env, out io.Writer) error {
	fs := newFlagSet("schema", out)
	dsn := dsnFlag(fs, e)
	schema := fs.String("schema", e.get("DB_SCHEMA", "public"), "schema to describe")
	outPath := fs.String("out", "", "also write the overview to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireDSN(*dsn); err != nil {
		return err
	}
	db, err := postgres.New(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	sys := service.NewSystemService(postgres.NewSystemRepo(db), version, *schema, *outPath, nil)
	ov, _, err := sys.DescribeSchema(ctx)
	if err != nil {
		return err
	}
	printJSON(out, ov)
	return nil
}
