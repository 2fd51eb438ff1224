package main

import (
	"context"
	"fmt"
	"strings"
)

const agentUsageText = `usage: pincer agent <add|authorize|list|revoke|remove> [args]
`

func cmdAgent(args []string) {
	if len(args) == 0 {
		printUsage(agentUsageText)
		return
	}
	sub := strings.ToLower(strings.TrimSpace(args[0]))
	rest := args[1:]
	switch sub {
	case "add":
		cmdAgentAdd(rest)
	case "authorize":
		cmdAgentAuthorize(rest)
	case "list":
		cmdAgentList(rest)
	case "revoke":
		cmdAgentRevoke(rest)
	case "remove":
		cmdAgentRemove(rest)
	default:
		fatal(fmt.Errorf("unknown agent subcommand: %s", sub))
	}
}

func cmdAgentAdd(args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("usage: pincer agent add <id> [token]"))
	}
	agentID := args[0]
	customToken := ""
	if len(args) > 1 {
		customToken = args[1]
	}
	cp := openControlPlane()
	defer cp.Close()
	token, err := cp.AddAgent(context.Background(), agentID, customToken)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s agent=%s token=%s\n", styleSuccess("registered"), agentID, token)
}

func cmdAgentAuthorize(args []string) {
	if len(args) < 2 {
		fatal(fmt.Errorf("usage: pincer agent authorize <id> <tool> [label]"))
	}
	agentID, tool := args[0], args[1]
	label := "default"
	if len(args) > 2 {
		label = args[2]
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.Authorize(context.Background(), agentID, tool, label); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess(fmt.Sprintf("authorized agent=%s tool=%s label=%s", agentID, tool, label)))
}

func cmdAgentList(args []string) {
	cp := openControlPlane()
	defer cp.Close()
	agents, err := cp.ListAgents(context.Background())
	if err != nil {
		fatal(err)
	}
	if len(agents) == 0 {
		fmt.Println(styleDim("no agents registered"))
		return
	}
	for _, a := range agents {
		var tools []string
		for _, t := range a.Tools {
			tools = append(tools, fmt.Sprintf("%s:%s", t.Tool, t.Label))
		}
		fmt.Printf("%s token=%s tools=[%s]\n", a.AgentID, a.Token, strings.Join(tools, ", "))
	}
}

func cmdAgentRevoke(args []string) {
	if len(args) < 2 {
		fatal(fmt.Errorf("usage: pincer agent revoke <id> <tool>"))
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.Revoke(context.Background(), args[0], args[1]); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess("revoked"))
}

func cmdAgentRemove(args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("usage: pincer agent remove <id>"))
	}
	cp := openControlPlane()
	defer cp.Close()
	if err := cp.RemoveAgent(context.Background(), args[0]); err != nil {
		fatal(err)
	}
	fmt.Println(styleSuccess("removed"))
}
