package prompt

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
)

// InputConfig holds configuration for a text input prompt.
type InputConfig struct {
	Title       string
	Description string
	Placeholder string
	// Secret hides the typed value.
	Secret   bool
	Validate func(string) error
}

// ConfirmConfig holds configuration for a yes/no confirmation prompt.
type ConfirmConfig struct {
	Title       string
	Description string
	Affirmative string
	Negative    string
	Default     bool
}

// SelectOption represents a single choice in a select prompt.
type SelectOption struct {
	Label string
	Value string
}

// SelectConfig holds configuration for a single-choice prompt.
type SelectConfig struct {
	Title       string
	Description string
	Options     []SelectOption
	Default     string
}

// Prompter defines the interface for interactive user prompts.
type Prompter interface {
	Input(cfg InputConfig) (string, error)
	Confirm(cfg ConfirmConfig) (bool, error)
	Select(cfg SelectConfig) (string, error)
}

// Default is the package-level prompter used by commands.
// In production this is a Huh instance; tests can swap it with a Mock.
var Default Prompter = &Huh{}

// SetDefault replaces the package-level prompter.
func SetDefault(p Prompter) {
	Default = p
}

// Huh implements Prompter using charmbracelet/huh forms.
type Huh struct{}

// runForm shows a single field. Escape aborts like ctrl+c so a half-typed
// API key is never saved.
func runForm(field huh.Field) error {
	keymap := huh.NewDefaultKeyMap()
	keymap.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"))
	return huh.NewForm(huh.NewGroup(field)).WithKeyMap(keymap).Run()
}

func (h *Huh) Input(cfg InputConfig) (string, error) {
	var value string
	input := huh.NewInput().
		Title(cfg.Title).
		Value(&value)

	if cfg.Description != "" {
		input.Description(cfg.Description)
	}
	if cfg.Placeholder != "" {
		input.Placeholder(cfg.Placeholder)
	}
	if cfg.Secret {
		input.EchoMode(huh.EchoModePassword)
	}
	if cfg.Validate != nil {
		input.Validate(cfg.Validate)
	}

	err := runForm(input)
	return value, err
}

func (h *Huh) Confirm(cfg ConfirmConfig) (bool, error) {
	value := cfg.Default
	confirm := huh.NewConfirm().
		Title(cfg.Title).
		Value(&value)

	if cfg.Description != "" {
		confirm.Description(cfg.Description)
	}
	if cfg.Affirmative != "" {
		confirm.Affirmative(cfg.Affirmative)
	}
	if cfg.Negative != "" {
		confirm.Negative(cfg.Negative)
	}

	err := runForm(confirm)
	return value, err
}

func (h *Huh) Select(cfg SelectConfig) (string, error) {
	value := cfg.Default
	options := make([]huh.Option[string], len(cfg.Options))
	for i, opt := range cfg.Options {
		options[i] = huh.NewOption(opt.Label, opt.Value)
	}

	sel := huh.NewSelect[string]().
		Title(cfg.Title).
		Options(options...).
		Value(&value)

	if cfg.Description != "" {
		sel.Description(cfg.Description)
	}

	err := runForm(sel)
	return value, err
}
