package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/aussiebroadwan/tmq/internal/config"
	"github.com/aussiebroadwan/tmq/pkg/lint"
)

// RunVerify runs the verify subcommand.
func RunVerify(configPath string) error {
	c := lint.NewCollector()

	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		var lintIssues lint.Issues
		if errors.As(cfgErr, &lintIssues) {
			c.Merge(lintIssues)
		} else {
			c.Error("config-load", "config", cfgErr.Error())
		}
	} else {
		issues := config.Lint(cfg)
		c.Merge(issues)
		if !issues.HasErrors() {
			c.Info("config-valid", "config", "configuration is valid")
		}
	}

	if cfg != nil {
		verifyBrokerReachable(c, cfg)
	}

	issues := c.Issues()
	fmt.Println()
	for _, issue := range issues {
		fmt.Println(issue)
	}
	fmt.Println()

	errorCount, warnCount, infoCount := issues.Count()
	fmt.Printf("Summary: %d error(s), %d warning(s), %d info\n", errorCount, warnCount, infoCount)

	if errorCount > 0 {
		os.Exit(1)
	}

	return nil
}

// verifyBrokerReachable attempts a short TCP dial to the configured
// broker address, the peer-side equivalent of a database ping.
func verifyBrokerReachable(c *lint.Collector, cfg *config.Config) {
	conn, err := net.DialTimeout("tcp", cfg.Peer.BrokerAddr, 2*time.Second)
	if err != nil {
		c.Warn("broker-unreachable", "peer.broker_addr", "could not connect: "+err.Error())
		return
	}
	conn.Close()
	c.Info("broker-reachable", "peer.broker_addr", "connection successful")
}
