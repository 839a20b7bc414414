package bundlecli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dive-federation/pdp/pkg/bundle"
)

func newBuildCommand() *Command {
	cmd := &Command{
		Name:        "build",
		Description: "Build and sign a policy bundle from a rules file",
		Flags:       flag.NewFlagSet("build", flag.ExitOnError),
	}

	key := cmd.Flags.String("key", "bundle.key", "Private signing key")
	rulesPath := cmd.Flags.String("rules", "", "Rules JSON file (omit for the baseline rule set)")
	version := cmd.Flags.String("version", "", "Bundle version (required, e.g. 2026.08.1)")
	out := cmd.Flags.String("out", "", "Output file (default <version>.bundle.json)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *version == "" {
			return fmt.Errorf("-version is required")
		}
		output := *out
		if output == "" {
			output = *version + ".bundle.json"
		}
		return runBuild(*key, *rulesPath, *version, output)
	}
	return cmd
}

func runBuild(keyPath, rulesPath, version, out string) error {
	priv, err := bundle.LoadPrivateKey(keyPath)
	if err != nil {
		return err
	}

	rules := bundle.DefaultRules()
	if rulesPath != "" {
		raw, err := os.ReadFile(rulesPath)
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}
		if err := json.Unmarshal(raw, &rules); err != nil {
			return fmt.Errorf("failed to parse rules file: %w", err)
		}
	}

	b, err := bundle.NewBuilder(priv).Build(version, rules)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := os.WriteFile(out, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	fmt.Printf("Built bundle %s (digest %s) -> %s\n", b.Version, b.Digest, out)
	return nil
}
