package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Parameter is one secret the engine resolves through SSM. EnvVar is the
// variable the config loader fills; the deployment sets EnvVar+"_SSM_PARAM"
// to the parameter path.
type Parameter struct {
	Label    string
	EnvVar   string
	SSMKey   string
	Required bool
	// Generate supplies a value when the values file has none.
	Generate func() (string, error)
	Validate func(ctx context.Context, value string) ValidationResult
}

// BuildInventory lists the engine's secrets in write order.
func BuildInventory(v *Validator) []Parameter {
	return []Parameter{
		{
			Label:    "Database URL",
			EnvVar:   "DATABASE_URL",
			SSMKey:   "database/url",
			Required: true,
			Validate: v.ValidateDatabaseURL,
		},
		{
			Label:    "SendGrid API Key",
			EnvVar:   "SENDGRID_API_KEY",
			SSMKey:   "email/sendgrid_api_key",
			Validate: v.ValidateSendGridKey,
		},
		{
			Label:    "Mirror Webhook URL",
			EnvVar:   "MIRROR_WEBHOOK_URL",
			SSMKey:   "mirror/webhook_url",
			Validate: v.ValidateWebhookURL,
		},
		{
			Label:    "Mirror Signing Secret",
			EnvVar:   "MIRROR_SIGNING_SECRET",
			SSMKey:   "mirror/signing_secret",
			Generate: GenerateSecureToken,
			Validate: ValidateSigningSecret,
		},
	}
}

// tokenByteLength gives 256 bits of entropy, 64 hex characters.
const tokenByteLength = 32

// GenerateSecureToken returns a random hex token from crypto/rand.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: crypto/rand failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Step actions reported in the summary.
const (
	actionWritten     = "written"
	actionOverwritten = "overwritten"
	actionGenerated   = "generated"
	actionSkipped     = "skipped"
	actionExists      = "exists"
)

type stepResult struct {
	Label  string
	Path   string
	EnvVar string
	Action string
}

// Runner stores an inventory of parameters from a map of values.
type Runner struct {
	SSM       *SSMManager
	Inventory []Parameter
	Stderr    io.Writer
	// Overwrite replaces parameters that already exist.
	Overwrite bool
}

// Run validates every supplied value before writing any, so a bad file
// leaves SSM untouched.
func (r *Runner) Run(ctx context.Context, values map[string]string) ([]stepResult, error) {
	resolved := make([]string, len(r.Inventory))
	for i, p := range r.Inventory {
		value := values[p.EnvVar]
		if value == "" {
			if p.Required {
				return nil, fmt.Errorf("%s (%s) is required", p.Label, p.EnvVar)
			}
			continue
		}
		if p.Validate != nil {
			if vr := p.Validate(ctx, value); !vr.Valid {
				return nil, fmt.Errorf("%s: %s", p.Label, vr.Message)
			}
		}
		resolved[i] = value
	}

	results := make([]stepResult, 0, len(r.Inventory))
	for i, p := range r.Inventory {
		res, err := r.store(ctx, p, resolved[i])
		if err != nil {
			return results, fmt.Errorf("step %q failed: %w", p.Label, err)
		}
		fmt.Fprintf(r.Stderr, "[%d/%d] %s: %s\n", i+1, len(r.Inventory), p.Label, res.Action)
		results = append(results, res)
	}

	r.printSummary(results)
	return results, nil
}

func (r *Runner) store(ctx context.Context, p Parameter, value string) (stepResult, error) {
	path := r.SSM.SSMPath(p.SSMKey)
	res := stepResult{Label: p.Label, Path: path, EnvVar: p.EnvVar}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, err
	}
	if exists && !r.Overwrite {
		res.Action = actionExists
		return res, nil
	}

	action := actionWritten
	if value == "" {
		if p.Generate == nil {
			res.Action = actionSkipped
			return res, nil
		}
		if exists {
			// Never rotate a generated secret implicitly.
			res.Action = actionExists
			return res, nil
		}
		if value, err = p.Generate(); err != nil {
			return res, err
		}
		action = actionGenerated
	}
	if exists {
		action = actionOverwritten
	}

	if err := r.SSM.PutSecret(ctx, path, value, exists); err != nil {
		return res, err
	}
	res.Action = action
	return res, nil
}

// printSummary lists the outcome per parameter and the pointer variables the
// deployment has to set.
func (r *Runner) printSummary(results []stepResult) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range results {
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+res.Action+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Deployment environment:\n")
	for _, res := range results {
		if res.Action == actionSkipped {
			continue
		}
		fmt.Fprintf(r.Stderr, "    %s_SSM_PARAM=%s\n", res.EnvVar, res.Path)
	}
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}
