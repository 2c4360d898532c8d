package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the `valuesbot health` command. It queries the
// gateway's /health endpoint and is used by Docker HEALTHCHECK.
func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running bot",
		Long: `Query the /health endpoint of a running bot's gateway and exit non-zero
unless it reports ok. Used by Docker HEALTHCHECK and monitoring.`,
		RunE: runHealth,
	}

	cmd.Flags().String("address", "", "gateway address (default: gateway.address from config)")
	cmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	return cmd
}

func runHealth(cmd *cobra.Command, _ []string) error {
	address, _ := cmd.Flags().GetString("address")
	if address == "" {
		cfg, _, err := loadConfig(cmd, io.Discard)
		if err != nil {
			return err
		}
		address = cfg.Gateway.Address
	}
	if address == "" {
		address = ":8085"
	}
	url := healthURL(address)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// healthURL turns a listen address such as ":8085" into a URL.
func healthURL(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return strings.TrimSuffix(address, "/") + "/health"
	}
	if strings.HasPrefix(address, ":") {
		address = "localhost" + address
	}
	return "http://" + address + "/health"
}
