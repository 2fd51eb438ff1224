// Command pincer is the administrative CLI over the Vault Store and
// keychain-backed master key: init, set, list, agent management, and
// the destructive reset/clear/destroy operations.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/VouchlyAI/Pincer-MCP/internal/config"
	"github.com/VouchlyAI/Pincer-MCP/internal/controlplane"
)

const usageText = `usage: pincer <command> [args]

Commands:
  init                        generate a master key and initialize the vault
  set <tool> <value> [label]  encrypt and store a secret (label defaults to "default")
  list                        list tools and labels with stored secrets
  agent add <id> [token]      register an agent, optionally with a custom proxy token
  agent authorize <id> <tool> [label]
                               grant an agent a tool with an optional label
  agent list                  list agents, their tokens, and tool mappings
  agent revoke <id> <tool>    remove one agent/tool mapping
  agent remove <id>           remove an agent and all its mappings
  reset [--yes]               delete the master key only; data stays but becomes unreadable
  clear [--yes]                wipe secrets/agents/mappings, keep the master key
  destroy [--yes]              wipe everything including the master key
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage(usageText)
		os.Exit(1)
	}
	cmd := strings.ToLower(strings.TrimSpace(args[0]))
	rest := args[1:]

	switch cmd {
	case "help", "-h", "--help":
		printUsage(usageText)
	case "init":
		cmdInit(rest)
	case "set":
		cmdSet(rest)
	case "list":
		cmdList(rest)
	case "agent":
		cmdAgent(rest)
	case "reset":
		cmdReset(rest)
	case "clear":
		cmdClear(rest)
	case "destroy":
		cmdDestroy(rest)
	default:
		fmt.Fprintf(os.Stderr, "%s unknown command: %s\n", styleError("error:"), cmd)
		printUsage(usageText)
		os.Exit(1)
	}
}

func printUsage(text string) {
	fmt.Print(styleUsage(text))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, styleError("error:")+" "+err.Error())
	os.Exit(1)
}

func openControlPlane() *controlplane.ControlPlane {
	cfg := config.Load()
	cp, err := controlplane.Open(cfg.VaultPath)
	if err != nil {
		fatal(err)
	}
	return cp
}

func cmdInit(args []string) {
	cfg := config.Load()
	if _, err := os.Stat(cfg.VaultPath); err == nil {
		fatal(fmt.Errorf("vault already exists at %s", cfg.VaultPath))
	}
	cp, _, err := controlplane.Init(cfg.VaultPath)
	if err != nil {
		fatal(err)
	}
	defer cp.Close()
	fmt.Println(styleSuccess("vault initialized at " + cfg.VaultPath))
}

func cmdSet(args []string) {
	if len(args) < 2 {
		fatal(fmt.Errorf("usage: pincer set <tool> <value> [label]"))
	}
	tool, value := args[0], args[1]
	label := "default"
	if len(args) > 2 {
		label = args[2]
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.SetSecret(context.Background(), tool, label, value); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess(fmt.Sprintf("stored secret for tool=%s label=%s", tool, label)))
}

func cmdList(args []string) {
	cp := openControlPlane()
	defer cp.Close()
	summaries, err := cp.ListSecrets(context.Background())
	if err != nil {
		fatal(err)
	}
	if len(summaries) == 0 {
		fmt.Println(styleDim("no secrets stored"))
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s: %s\n", s.Tool, strings.Join(s.Labels, ", "))
	}
}

func cmdReset(args []string) {
	yes := hasFlag(args, "--yes")
	if !yes {
		ok, proceed := confirmYN("this deletes the master key; stored secrets become unrecoverable; continue?", false)
		if !proceed || !ok {
			fmt.Println(styleDim("aborted"))
			return
		}
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.Reset(context.Background()); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess("master key deleted"))
}

func cmdClear(args []string) {
	yes := hasFlag(args, "--yes")
	if !yes {
		ok, proceed := confirmYN("this wipes all secrets and agent mappings (keeps the master key); continue?", false)
		if !proceed || !ok {
			fmt.Println(styleDim("aborted"))
			return
		}
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.ClearAll(context.Background()); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess("vault cleared"))
}

func cmdDestroy(args []string) {
	yes := hasFlag(args, "--yes")
	if !yes {
		ok, proceed := confirmYN("this permanently destroys the vault and master key; continue?", false)
		if !proceed || !ok {
			fmt.Println(styleDim("aborted"))
			return
		}
	}
	cp := openControlPlane()
	if err := cp.Destroy(); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess("vault destroyed"))
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
