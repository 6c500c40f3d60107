// File: cmd/doctor.go
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buildmedic/buildmedic-cli/internal/config"
)

// newDoctorCmd creates the `doctor` command, a preflight check pipeline
// authors run once to confirm the tool can work in their environment.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Checks configuration, credentials, and the cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			failures := 0
			check := func(ok bool, label, detail string) {
				mark := "ok"
				if !ok {
					mark = "FAIL"
					failures++
				}
				if detail != "" {
					fmt.Printf("  [%-4s] %s: %s\n", mark, label, detail)
				} else {
					fmt.Printf("  [%-4s] %s\n", mark, label)
				}
			}

			cfg := appConfig

			fmt.Println("Configuration:")
			if err := cfg.Validate(); err != nil {
				check(false, "config", err.Error())
			} else {
				check(true, "config", fmt.Sprintf("%d provider(s), strategy %s",
					len(cfg.Providers), cfg.Orchestrator.FallbackStrategy))
			}

			fmt.Println("Providers:")
			for _, spec := range cfg.Providers {
				label := fmt.Sprintf("%s (%s/%s)", spec.Name, spec.Provider, spec.Model)
				if os.Getenv(spec.CredentialEnv) == "" {
					check(false, label, fmt.Sprintf("credential %s is not set", spec.CredentialEnv))
					continue
				}
				if spec.Endpoint != "" {
					if u, err := url.Parse(spec.Endpoint); err != nil || u.Scheme == "" {
						check(false, label, fmt.Sprintf("endpoint %q is not a valid URL", spec.Endpoint))
						continue
					}
				}
				check(true, label, fmt.Sprintf("credential %s present", spec.CredentialEnv))
			}

			fmt.Println("Cache:")
			check(cacheWritable(cfg.Cache), "cache directory", cfg.Cache.Dir)

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Println("All checks passed.")
			return nil
		},
	}
}

// cacheWritable probes the cache directory with a real write, the same way
// the cache itself will.
func cacheWritable(cfg config.CacheConfig) bool {
	if !cfg.Enabled {
		return true
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return false
	}
	probe := filepath.Join(cfg.Dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}
