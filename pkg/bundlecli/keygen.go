package bundlecli

import (
	"flag"
	"fmt"

	"github.com/dive-federation/pdp/pkg/bundle"
)

func newKeygenCommand() *Command {
	cmd := &Command{
		Name:        "keygen",
		Description: "Generate an ed25519 bundle signing key pair",
		Flags:       flag.NewFlagSet("keygen", flag.ExitOnError),
	}

	private := cmd.Flags.String("private", "bundle.key", "Path to write the private signing key")
	public := cmd.Flags.String("public", "bundle.pub", "Path to write the public verification key")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return runKeygen(*private, *public)
	}
	return cmd
}

func runKeygen(privatePath, publicPath string) error {
	pub, priv, err := bundle.GenerateSigningKey()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	if err := bundle.SavePrivateKey(privatePath, priv); err != nil {
		return err
	}
	if err := bundle.SavePublicKey(publicPath, pub); err != nil {
		return err
	}
	fmt.Printf("Wrote signing key to %s and verification key to %s\n", privatePath, publicPath)
	fmt.Println("Distribute only the verification key to decision points.")
	return nil
}
