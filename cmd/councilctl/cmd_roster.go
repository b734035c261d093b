package main

import (
	"fmt"
	"strings"

	rosteradapter "coai/contexts/incident-governance/council-engine/adapters/roster"
	"coai/contexts/incident-governance/council-engine/domain/entities"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"github.com/spf13/cobra"
)

type rosterMember struct {
	AgentID   string `json:"agent_id"`
	AgentRole string `json:"role"`
	Provider  string `json:"provider"`
}

func newRosterCmd(root *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Validate and print a council roster",
		Long: `Prints the built-in 33-agent roster, or validates and prints the roster
file given with --file. The YAML output can be used as COUNCIL_ROSTER_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roster, err := loadRoster(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(root.output) {
			case "yaml":
				raw, err := rosteradapter.Marshal(roster)
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			case "json":
				members := make([]rosterMember, 0, roster.Size())
				for _, member := range roster.Members {
					members = append(members, rosterMember{
						AgentID:   member.AgentID,
						AgentRole: string(member.AgentRole),
						Provider:  member.Provider,
					})
				}
				return writeJSON(out, members)
			case "text", "":
				counts := make(map[entities.AgentRole]int, len(entities.AgentRoles))
				for _, member := range roster.Members {
					counts[member.AgentRole]++
					fmt.Fprintf(out, "%-16s %-10s %s\n", member.AgentID, member.AgentRole, member.Provider)
				}
				fmt.Fprintf(out, "%d members", roster.Size())
				for _, role := range entities.AgentRoles {
					fmt.Fprintf(out, ", %d %s", counts[role], role)
				}
				fmt.Fprintln(out)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", root.output)
			}
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "Roster YAML file (default: built-in roster)")
	return cmd
}

func loadRoster(path string) (entities.Roster, error) {
	if strings.TrimSpace(path) == "" {
		return services.DefaultRoster(), nil
	}
	return rosteradapter.LoadFile(path)
}
