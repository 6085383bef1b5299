package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CommandAction tells the router how to handle a matched command.
type CommandAction int

const (
	// ActionPrompt rewrites the message into a canned prompt for the LLM.
	ActionPrompt CommandAction = iota
	// ActionHelp answers with the help text directly, no LLM round trip.
	ActionHelp
	// ActionClear resets the conversation history.
	ActionClear
)

// Command is a slash shortcut users can send instead of free text.
type Command struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Prompt      string        `yaml:"prompt"`
	Action      CommandAction `yaml:"-"`
}

// CommandSet resolves slash commands, built-ins first, then any extras
// loaded from a YAML file.
type CommandSet struct {
	commands []Command
	index    map[string]int
}

func builtinCommands() []Command {
	return []Command{
		{Name: "/help", Description: "查看帮助", Action: ActionHelp},
		{Name: "/今日数据", Description: "查看今日数据概览", Prompt: "请查询今日数据概览", Action: ActionPrompt},
		{Name: "/工具排行", Description: "查看最近7天工具排行", Prompt: "请查询最近7天的工具排行榜", Action: ActionPrompt},
		{Name: "/用户排行", Description: "查看最近7天用户排行", Prompt: "请查询最近7天的用户活跃排行榜", Action: ActionPrompt},
		{Name: "/new", Description: "开始新的对话", Action: ActionClear},
	}
}

func NewCommandSet() *CommandSet {
	s := &CommandSet{index: make(map[string]int)}
	for _, c := range builtinCommands() {
		s.add(c)
	}
	return s
}

func (s *CommandSet) add(c Command) {
	if i, ok := s.index[c.Name]; ok {
		s.commands[i] = c
		return
	}
	s.index[c.Name] = len(s.commands)
	s.commands = append(s.commands, c)
}

// LoadFile merges extra prompt commands from a YAML file. Entries with a
// name starting with "/" and a non-empty prompt are accepted; built-ins
// cannot be overridden.
func (s *CommandSet) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read commands file: %w", err)
	}

	var file struct {
		Commands []Command `yaml:"commands"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse commands file: %w", err)
	}

	for _, c := range file.Commands {
		if !strings.HasPrefix(c.Name, "/") || c.Prompt == "" {
			continue
		}
		if _, exists := s.index[c.Name]; exists {
			continue
		}
		c.Action = ActionPrompt
		s.add(c)
	}
	return nil
}

// Resolve matches a message against the command set by prefix, in
// registration order. Prefix matching lets "/工具排行 本月" still hit the
// ranking shortcut.
func (s *CommandSet) Resolve(text string) (Command, bool) {
	t := strings.TrimSpace(text)
	for _, c := range s.commands {
		if strings.HasPrefix(t, c.Name) {
			return c, true
		}
	}
	return Command{}, false
}

// HelpText renders the command list for the /help response.
func (s *CommandSet) HelpText(botName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 我是%s，可以帮你查询平台的使用数据。\n\n", botName)
	b.WriteString("直接用自然语言提问即可，例如「最近一周哪个工具最火？」\n\n可用命令：\n")
	for _, c := range s.commands {
		fmt.Fprintf(&b, "%s - %s\n", c.Name, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
