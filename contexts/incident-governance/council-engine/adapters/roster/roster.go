package roster

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"coai/contexts/incident-governance/council-engine/domain/entities"
	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	"coai/contexts/incident-governance/council-engine/domain/services"

	"gopkg.in/yaml.v3"
)

// StaticSource serves a fixed roster. The zero value serves the default
// 33-agent council.
type StaticSource struct {
	Members []entities.CouncilMember
}

func (s StaticSource) Roster(_ context.Context) (entities.Roster, error) {
	if len(s.Members) == 0 {
		return services.DefaultRoster(), nil
	}
	return entities.Roster{Members: append([]entities.CouncilMember(nil), s.Members...)}, nil
}

type fileDocument struct {
	Council struct {
		Members []fileMember `yaml:"members"`
	} `yaml:"council"`
}

type fileMember struct {
	AgentID  string `yaml:"agent_id"`
	Role     string `yaml:"role"`
	Provider string `yaml:"provider"`
}

// FileSource loads the roster from a YAML document of the form
//
//	council:
//	  members:
//	    - agent_id: guardian-01
//	      role: guardian
//	      provider: openai
//
// The file is read once and cached.
type FileSource struct {
	Path string

	once   sync.Once
	roster entities.Roster
	err    error
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: strings.TrimSpace(path)}
}

func (s *FileSource) Roster(_ context.Context) (entities.Roster, error) {
	s.once.Do(func() {
		s.roster, s.err = LoadFile(s.Path)
	})
	return s.roster, s.err
}

func LoadFile(path string) (entities.Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return entities.Roster{}, fmt.Errorf("read council roster %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a roster document.
func Parse(raw []byte) (entities.Roster, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return entities.Roster{}, fmt.Errorf("%w: %v", domainerrors.ErrInvalidRoster, err)
	}
	if len(doc.Council.Members) == 0 {
		return entities.Roster{}, fmt.Errorf("%w: no council members", domainerrors.ErrInvalidRoster)
	}
	members := make([]entities.CouncilMember, 0, len(doc.Council.Members))
	for _, item := range doc.Council.Members {
		members = append(members, entities.CouncilMember{
			AgentID:   strings.TrimSpace(item.AgentID),
			AgentRole: entities.ParseAgentRole(item.Role),
			Provider:  strings.TrimSpace(item.Provider),
		})
	}
	roster := entities.Roster{Members: members}
	if err := services.ValidateRoster(roster); err != nil {
		return entities.Roster{}, err
	}
	return roster, nil
}

// Marshal renders a roster in the same document shape Parse accepts.
func Marshal(roster entities.Roster) ([]byte, error) {
	var doc fileDocument
	for _, member := range roster.Members {
		doc.Council.Members = append(doc.Council.Members, fileMember{
			AgentID:  member.AgentID,
			Role:     string(member.AgentRole),
			Provider: member.Provider,
		})
	}
	return yaml.Marshal(doc)
}
