package bundlecli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// client wraps the decision point's bundle lifecycle API.
type client struct {
	server string
	token  string
	http   *http.Client
}

func newClient(server, token string) *client {
	return &client{
		server: server,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.server+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, payload)
	}
	return payload, nil
}

// serverFlags adds the flags every lifecycle command shares.
func serverFlags(fs *flag.FlagSet) (*string, *string) {
	server := fs.String("server", "http://localhost:8080", "Decision point URL")
	token := fs.String("token", os.Getenv("PDP_TOKEN"), "Bearer token (default $PDP_TOKEN)")
	return server, token
}

func newPublishCommand() *Command {
	cmd := &Command{
		Name:        "publish",
		Description: "Publish a signed bundle to the distribution point",
		Flags:       flag.NewFlagSet("publish", flag.ExitOnError),
	}
	server, token := serverFlags(cmd.Flags)
	file := cmd.Flags.String("bundle", "", "Signed bundle file (required)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return fmt.Errorf("-bundle is required")
		}

		raw, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("failed to read bundle file: %w", err)
		}
		var body json.RawMessage = raw

		payload, err := newClient(*server, *token).do("POST", "/v1/bundle/publish", body)
		if err != nil {
			return err
		}
		fmt.Printf("Published: %s\n", payload)
		return nil
	}
	return cmd
}

func newActivateCommand() *Command {
	return newVersionCommand("activate", "Activate a published bundle version", "/v1/bundle/activate")
}

func newPinCommand() *Command {
	return newVersionCommand("pin", "Pin a bundle version, suspending automatic updates", "/v1/bundle/pin")
}

// newVersionCommand builds a lifecycle command that posts {"version": ...}.
func newVersionCommand(name, description, path string) *Command {
	cmd := &Command{
		Name:        name,
		Description: description,
		Flags:       flag.NewFlagSet(name, flag.ExitOnError),
	}
	server, token := serverFlags(cmd.Flags)
	version := cmd.Flags.String("version", "", "Bundle version (required)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *version == "" {
			return fmt.Errorf("-version is required")
		}
		payload, err := newClient(*server, *token).do("POST", path, map[string]string{"version": *version})
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", payload)
		return nil
	}
	return cmd
}

func newUnpinCommand() *Command {
	return newBareCommand("unpin", "Unpin the bundle and resume automatic updates", "POST", "/v1/bundle/unpin")
}

func newRollbackCommand() *Command {
	return newBareCommand("rollback", "Roll back to the previously active bundle", "POST", "/v1/bundle/rollback")
}

func newStatusCommand() *Command {
	return newBareCommand("status", "Show active, pinned, and replica bundle versions", "GET", "/v1/bundle/status")
}

// newBareCommand builds a lifecycle command with no request body.
func newBareCommand(name, description, method, path string) *Command {
	cmd := &Command{
		Name:        name,
		Description: description,
		Flags:       flag.NewFlagSet(name, flag.ExitOnError),
	}
	server, token := serverFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		payload, err := newClient(*server, *token).do(method, path, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", payload)
		return nil
	}
	return cmd
}
