package main

import (
	"fmt"

	"github.com/kadirpekel/lev/pkg/manifest"
)

// ValidateCmd checks a manifest against the schema without running it.
type ValidateCmd struct {
	Manifest string `arg:"" help:"Manifest file to validate." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	m, err := manifest.Load(c.Manifest)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n", c.Manifest)
	fmt.Printf("   Description: %s\n", m.Description)
	fmt.Printf("   MCP servers: %d\n", len(m.McpServers))
	fmt.Printf("   Evals:       %d\n", len(m.Evals))
	return nil
}
