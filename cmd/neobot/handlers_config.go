package main

import (
	"fmt"
	"io"

	"github.com/haasonsaas/neobot/internal/config"
)

func runConfigSchema(out io.Writer) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = fmt.Fprintln(out, string(schema))
	return err
}

func runConfigValidate(out io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: ok (version %d, fence %q, %d intents)\n",
		path, cfg.Version, cfg.Scripts.Fence, len(cfg.Discord.Intents))
	return nil
}
