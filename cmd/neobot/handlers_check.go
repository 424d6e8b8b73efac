package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/neobot/internal/capability"
	"github.com/haasonsaas/neobot/internal/config"
	"github.com/haasonsaas/neobot/internal/script"
	"github.com/haasonsaas/neobot/pkg/models"
)

// checkOrigin stands in for the chat message a script would be posted in.
var checkOrigin = &models.Message{
	ID:        "check",
	Channel:   models.ChannelDiscord,
	ChannelID: "check",
	GuildID:   "check",
	Author:    models.User{ID: "check", Name: "check"},
}

// runCheck compiles the script at path ("-" reads in) and prints its hooks.
func runCheck(out io.Writer, in io.Reader, path, fence string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return checkSource(out, string(data), fence)
}

func checkSource(out io.Writer, content, fence string) error {
	src := content
	if code, ok := script.RecognizeFence(content, fence); ok {
		src = code
	} else if strings.Contains(content, "```") {
		return fmt.Errorf("no %q code block found", fence)
	}

	scope := capability.NewProvider(capability.Options{
		Transport: capability.NopTransport{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).Scope(checkOrigin)

	sb, err := script.Compile(src, config.DefaultAllowedPackages, scope.Exports())
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	hooks := sb.Hooks()
	fmt.Fprintf(out, "ok: %d hook(s)\n", len(hooks))
	for _, hook := range hooks {
		marker := ""
		if hook == script.HookOnMessage || hook == script.HookOnMessageUpdate {
			marker = " (event)"
		}
		fmt.Fprintf(out, "  - %s%s\n", hook, marker)
	}
	return nil
}

// runCheckWatch checks path once and again after every change until ctx is
// cancelled. Compile errors are reported but do not stop the watch.
func runCheckWatch(ctx context.Context, out io.Writer, path, fence string, debounce time.Duration) error {
	if path == "-" {
		return fmt.Errorf("--watch needs a file path")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory instead.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var outMu sync.Mutex
	check := func() {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, "== %s\n", path)
		if err := runCheck(out, nil, abs, fence); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	check()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, check)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("script watch error", "error", err)
		}
	}
}
